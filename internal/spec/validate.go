package spec

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultGapTolerance is the slack, in seconds, below which adjacent base
// clips count as touching rather than gapped or overlapping.
const DefaultGapTolerance = 0.001

// Issue describes a single validation failure.
type Issue struct {
	Entity string
	Rule   string
	Detail string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Entity, i.Rule, i.Detail)
}

// ValidationError aggregates every violation found in a spec. Compilation is
// all-or-nothing: a spec with any issue is never compiled.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "spec validation failed"
	}
	lines := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		lines = append(lines, issue.String())
	}
	return fmt.Sprintf("spec validation failed (%d issues):\n  %s", len(e.Issues), strings.Join(lines, "\n  "))
}

type checker struct {
	tolerance float64
	issues    []Issue
}

func (c *checker) add(entity, rule, format string, args ...any) {
	c.issues = append(c.issues, Issue{Entity: entity, Rule: rule, Detail: fmt.Sprintf(format, args...)})
}

// Validate checks every rule the compiler depends on and reports all
// violations at once. The tolerance argument separates floating-point noise
// from true gaps and overlaps; zero selects DefaultGapTolerance.
func Validate(s *Spec, tolerance float64) error {
	if tolerance <= 0 {
		tolerance = DefaultGapTolerance
	}
	c := &checker{tolerance: tolerance}

	c.checkClips(s)
	total := s.TotalDuration()
	c.checkOverlays(s, total)
	c.checkSubtitles(s)
	c.checkAudios(s)

	if len(c.issues) > 0 {
		return &ValidationError{Issues: c.issues}
	}
	return nil
}

func (c *checker) checkClips(s *Spec) {
	if len(s.Videos) == 0 {
		c.add("videos", "empty", "at least one base clip is required")
		return
	}

	for i, clip := range s.Videos {
		entity := entityLabel("clip", i)
		if strings.TrimSpace(clip.File) == "" {
			c.add(entity, "missing-asset", "no media reference")
		}
		if !finite(clip.Start) || !finite(clip.End) {
			c.add(entity, "time-range", "start/end must be finite numbers")
			continue
		}
		if clip.Start < 0 {
			c.add(entity, "time-range", "start %.3f is negative", clip.Start)
		}
		if clip.End == clip.Start {
			c.add(entity, "zero-length", "start and end are both %.3f", clip.Start)
		} else if clip.End < clip.Start {
			c.add(entity, "time-range", "end %.3f precedes start %.3f", clip.End, clip.Start)
		}
		if clip.TrimIn != nil && *clip.TrimIn < 0 {
			c.add(entity, "trim", "trim_in %.3f is negative", *clip.TrimIn)
		}
		if clip.TrimIn != nil && clip.TrimOut != nil && *clip.TrimOut <= *clip.TrimIn {
			c.add(entity, "trim", "trim_out %.3f does not exceed trim_in %.3f", *clip.TrimOut, *clip.TrimIn)
		}
	}

	c.checkBaseTrackContiguity(s)
}

// checkBaseTrackContiguity enforces the gapless base-track invariant: sorted
// by start, clips must tile [0, totalDuration] with neither holes nor overlap.
func (c *checker) checkBaseTrackContiguity(s *Spec) {
	order := make([]int, 0, len(s.Videos))
	for i, clip := range s.Videos {
		if finite(clip.Start) && finite(clip.End) && clip.End > clip.Start {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.Videos[order[a]].Start < s.Videos[order[b]].Start
	})

	first := s.Videos[order[0]]
	if first.Start > c.tolerance {
		c.add(entityLabel("clip", order[0]), "timeline-gap", "base track starts at %.3f, not 0", first.Start)
	}
	for k := 1; k < len(order); k++ {
		prev := s.Videos[order[k-1]]
		cur := s.Videos[order[k]]
		entity := entityLabel("clip", order[k])
		switch {
		case cur.Start < prev.End-c.tolerance:
			c.add(entity, "timeline-overlap", "starts at %.3f before previous clip ends at %.3f", cur.Start, prev.End)
		case cur.Start > prev.End+c.tolerance:
			c.add(entity, "timeline-gap", "hole of %.3fs before clip starting at %.3f", cur.Start-prev.End, cur.Start)
		}
	}
}

func (c *checker) checkOverlays(s *Spec, total float64) {
	for i, overlay := range s.Avatars {
		entity := entityLabel("avatar", i)
		if strings.TrimSpace(overlay.File) == "" {
			c.add(entity, "missing-asset", "no media reference")
		}
		if overlay.Size[0] <= 0 || overlay.Size[1] <= 0 {
			c.add(entity, "size", "size must be positive, got [%g, %g]", overlay.Size[0], overlay.Size[1])
		}
		for w, window := range overlay.DeclaredWindows() {
			if window.End < 0 {
				// Open-ended: closed by the resolver at native duration.
				continue
			}
			label := fmt.Sprintf("%s.window[%d]", entity, w)
			if window.End <= window.Start {
				c.add(label, "time-range", "end %.3f does not exceed start %.3f", window.End, window.Start)
				continue
			}
			if window.Start < 0 {
				c.add(label, "time-range", "start %.3f is negative", window.Start)
			}
			if total > 0 && window.Start >= total {
				c.add(label, "out-of-bounds", "window starts at %.3f, past total duration %.3f", window.Start, total)
			}
		}
	}
}

func (c *checker) checkSubtitles(s *Spec) {
	order := make([]int, 0, len(s.Subtitles))
	for i, cue := range s.Subtitles {
		entity := entityLabel("subtitle", i)
		if cue.End <= cue.Start {
			c.add(entity, "time-range", "end %.3f does not exceed start %.3f", cue.End, cue.Start)
			continue
		}
		if cue.Start < 0 {
			c.add(entity, "time-range", "start %.3f is negative", cue.Start)
		}
		order = append(order, i)
	}

	sort.SliceStable(order, func(a, b int) bool {
		return s.Subtitles[order[a]].Start < s.Subtitles[order[b]].Start
	})
	for k := 1; k < len(order); k++ {
		prev := s.Subtitles[order[k-1]]
		cur := s.Subtitles[order[k]]
		// Adjacent cues may touch; only true overlap is rejected.
		if cur.Start < prev.End-c.tolerance {
			c.add(entityLabel("subtitle", order[k]), "overlap", "starts at %.3f before previous cue ends at %.3f", cur.Start, prev.End)
		}
	}
}

func (c *checker) checkAudios(s *Spec) {
	ids := make(map[string]int)
	type interval struct {
		index      int
		start, end float64
	}
	var narration []interval

	for i, track := range s.Audios {
		entity := entityLabel("audio", i)
		if strings.TrimSpace(track.File) == "" {
			c.add(entity, "missing-asset", "no media reference")
		}
		switch track.EffectiveKind() {
		case KindNarration, KindBGM, KindBase:
		default:
			c.add(entity, "kind", "unknown track kind %q", track.Kind)
		}
		if track.Start < 0 {
			c.add(entity, "time-range", "start %.3f is negative", track.Start)
		}
		if track.End != nil && *track.End <= track.Start {
			c.add(entity, "time-range", "end %.3f does not exceed start %.3f", *track.End, track.Start)
		}
		if track.FadeIn < 0 || track.FadeOut < 0 {
			c.add(entity, "fade", "fade durations must not be negative")
		}
		if id := strings.TrimSpace(track.ID); id != "" {
			if prev, ok := ids[id]; ok {
				c.add(entity, "duplicate-id", "track id %q already used by audio[%d]", id, prev)
			} else {
				ids[id] = i
			}
		}
		if track.EffectiveKind() == KindNarration && track.End != nil && *track.End > track.Start {
			narration = append(narration, interval{index: i, start: track.Start, end: *track.End})
		}
	}

	// Narration overlap is checkable here only for tracks with explicit ends;
	// tracks that run for their native duration are re-checked after probing.
	sort.SliceStable(narration, func(a, b int) bool { return narration[a].start < narration[b].start })
	for k := 1; k < len(narration); k++ {
		prev := narration[k-1]
		cur := narration[k]
		if cur.start < prev.end-c.tolerance {
			c.add(entityLabel("audio", cur.index), "narration-overlap", "overlaps narration audio[%d] ending at %.3f", prev.index, prev.end)
		}
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
