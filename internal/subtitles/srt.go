package subtitles

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"montage/internal/spec"
)

// Timestamp renders seconds in the SRT HH:MM:SS,mmm form.
func Timestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int(math.Round(seconds * 1000))
	total := totalMillis / 1000
	millis := totalMillis % 1000
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// WriteSRT emits the cues as a SubRip document, ordered by start time.
// Style hints are ignored: SRT has no styling channel, and burn-in styling
// is the encoder's concern.
func WriteSRT(w io.Writer, cues []spec.Cue) error {
	ordered := append([]spec.Cue(nil), cues...)
	sort.SliceStable(ordered, func(a, b int) bool { return ordered[a].Start < ordered[b].Start })

	var b strings.Builder
	for i, cue := range ordered {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, Timestamp(cue.Start), Timestamp(cue.End), cue.Text)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteSRTFile writes the cues to path, creating parent directories.
func WriteSRTFile(path string, cues []spec.Cue) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure subtitle dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create subtitle file: %w", err)
	}
	defer file.Close()
	return WriteSRT(file, cues)
}
