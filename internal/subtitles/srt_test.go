package subtitles_test

import (
	"bytes"
	"testing"

	"montage/internal/spec"
	"montage/internal/subtitles"
)

func TestTimestamp(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00,000"},
		{1.5, "00:00:01,500"},
		{61.25, "00:01:01,250"},
		{3661.001, "01:01:01,001"},
		{-2, "00:00:00,000"},
	}
	for _, tc := range cases {
		if got := subtitles.Timestamp(tc.in); got != tc.want {
			t.Fatalf("Timestamp(%g) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWriteSRTOrdersAndNumbersCues(t *testing.T) {
	cues := []spec.Cue{
		{Start: 4, End: 6, Text: "second"},
		{Start: 0, End: 2, Text: "first"},
	}
	var buf bytes.Buffer
	if err := subtitles.WriteSRT(&buf, cues); err != nil {
		t.Fatalf("WriteSRT returned error: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:02,000\nfirst\n\n2\n00:00:04,000 --> 00:00:06,000\nsecond\n\n"
	if buf.String() != want {
		t.Fatalf("unexpected SRT output:\n%q\nwant:\n%q", buf.String(), want)
	}
}
