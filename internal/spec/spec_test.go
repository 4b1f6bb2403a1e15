package spec_test

import (
	"errors"
	"strings"
	"testing"

	"montage/internal/spec"
)

func f(v float64) *float64 { return &v }

func TestParseAcceptsLooseSubtitleKeys(t *testing.T) {
	doc := `{
		"videos": [{"file": "a.mp4", "start": 0, "end": 10}],
		"subtitles": [
			{"start": 0, "end": 2, "text": "hello"},
			{"start": 2, "content": "world"},
			{"start": 4, "end": 6, "tetx": "typo key"},
			{"start": 6, "end": 8, "subtitle": "alt key"}
		],
		"output": {"resolution": [1280, 720], "fps": 25}
	}`
	s, err := spec.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	got := make([]string, 0, len(s.Subtitles))
	for _, cue := range s.Subtitles {
		got = append(got, cue.Text)
	}
	want := []string{"hello", "world", "typo key", "alt key"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cue %d text: got %q want %q", i, got[i], want[i])
		}
	}
	if s.Subtitles[1].End != 4 {
		t.Fatalf("expected missing end to default to start+2, got %g", s.Subtitles[1].End)
	}
	if s.Output.Resolution != [2]int{1280, 720} || s.Output.FPS != 25 {
		t.Fatalf("unexpected output: %+v", s.Output)
	}
}

func TestTotalDurationAndAssetRefs(t *testing.T) {
	s := &spec.Spec{
		Videos: []spec.Clip{
			{File: "a.mp4", Start: 0, End: 5},
			{File: "b.mp4", Start: 5, End: 12},
		},
		Avatars: []spec.Overlay{{File: "avatar.mp4", Size: [2]float64{0.2, 0.2}}},
		Audios:  []spec.AudioTrack{{File: "a.mp4"}},
	}
	if s.TotalDuration() != 12 {
		t.Fatalf("unexpected total duration: %g", s.TotalDuration())
	}
	refs := s.AssetRefs()
	want := []string{"a.mp4", "b.mp4", "avatar.mp4"}
	if len(refs) != len(want) {
		t.Fatalf("unexpected refs: %v", refs)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Fatalf("ref %d: got %q want %q", i, refs[i], want[i])
		}
	}
}

func TestValidateAcceptsWellFormedSpec(t *testing.T) {
	s := &spec.Spec{
		Videos: []spec.Clip{
			{File: "a.mp4", Start: 0, End: 5},
			{File: "b.mp4", Start: 5, End: 10},
		},
		Avatars: []spec.Overlay{
			{File: "av.mp4", Size: [2]float64{0.25, 0.25}, Start: f(1), End: f(4)},
		},
		Subtitles: []spec.Cue{
			{Start: 0, End: 2, Text: "one"},
			{Start: 2, End: 4, Text: "two"},
		},
		Audios: []spec.AudioTrack{
			{File: "narr.mp3", Kind: spec.KindNarration, Start: 1, End: f(4)},
			{File: "music.mp3", Kind: spec.KindBGM},
		},
	}
	if err := spec.Validate(s, 0); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestValidateRejectsZeroLengthClip(t *testing.T) {
	s := &spec.Spec{
		Videos: []spec.Clip{
			{File: "a.mp4", Start: 0, End: 5},
			{File: "b.mp4", Start: 5, End: 5},
		},
	}
	err := spec.Validate(s, 0)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr *spec.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	found := false
	for _, issue := range verr.Issues {
		if issue.Entity == "clip[1]" && issue.Rule == "zero-length" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected zero-length issue for clip[1], got: %v", verr.Issues)
	}
}

func TestValidateReportsEveryIssue(t *testing.T) {
	s := &spec.Spec{
		Videos: []spec.Clip{
			{File: "", Start: 2, End: 8},       // missing asset + timeline does not start at 0
			{File: "b.mp4", Start: 6, End: 12}, // overlaps previous clip
		},
		Subtitles: []spec.Cue{
			{Start: 0, End: 3, Text: "one"},
			{Start: 2, End: 4, Text: "two"}, // overlaps previous cue
		},
		Audios: []spec.AudioTrack{
			{ID: "n", File: "x.mp3", Kind: spec.KindNarration, Start: 0, End: f(5)},
			{ID: "n", File: "y.mp3", Kind: spec.KindNarration, Start: 3, End: f(6)}, // dup id + overlap
		},
	}
	err := spec.Validate(s, 0)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr *spec.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	rules := make(map[string]bool)
	for _, issue := range verr.Issues {
		rules[issue.Rule] = true
	}
	for _, want := range []string{"missing-asset", "timeline-gap", "timeline-overlap", "overlap", "duplicate-id", "narration-overlap"} {
		if !rules[want] {
			t.Fatalf("expected rule %q among issues: %v", want, verr.Issues)
		}
	}
}

func TestValidateRejectsTimelineHole(t *testing.T) {
	s := &spec.Spec{
		Videos: []spec.Clip{
			{File: "a.mp4", Start: 0, End: 5},
			{File: "b.mp4", Start: 6, End: 10},
		},
	}
	err := spec.Validate(s, 0)
	if err == nil {
		t.Fatal("expected gap to be rejected")
	}
	if !strings.Contains(err.Error(), "timeline-gap") {
		t.Fatalf("expected timeline-gap issue, got: %v", err)
	}
}

func TestValidateToleratesFloatNoise(t *testing.T) {
	s := &spec.Spec{
		Videos: []spec.Clip{
			{File: "a.mp4", Start: 0, End: 5.0004},
			{File: "b.mp4", Start: 5.0, End: 10},
		},
	}
	if err := spec.Validate(s, 0); err != nil {
		t.Fatalf("sub-tolerance seam rejected: %v", err)
	}
}

func TestValidateRejectsWindowPastTotalDuration(t *testing.T) {
	s := &spec.Spec{
		Videos:  []spec.Clip{{File: "a.mp4", Start: 0, End: 10}},
		Avatars: []spec.Overlay{{File: "av.mp4", Size: [2]float64{0.2, 0.2}, Start: f(11), End: f(14)}},
	}
	err := spec.Validate(s, 0)
	if err == nil {
		t.Fatal("expected out-of-bounds window to be rejected")
	}
	if !strings.Contains(err.Error(), "out-of-bounds") {
		t.Fatalf("expected out-of-bounds issue, got: %v", err)
	}
}
