package compile

import (
	"fmt"
	"math"
	"sort"

	"montage/internal/spec"
)

// Segment is one resolved base-track interval: a clip fitted to its slot with
// trim bounds and a speed factor. Created here, consumed by the plan emitter.
type Segment struct {
	Index       int
	Source      string
	Start       float64
	End         float64
	TrimIn      float64
	TrimOut     float64
	SpeedFactor float64
	// AutoTrimmed records that the source overran its slot and was trimmed to
	// fit instead of sped up.
	AutoTrimmed bool
	GainDB      float64
	HasAudio    bool
}

// SlotDuration is the rendered length of the segment on the output timeline.
func (s Segment) SlotDuration() float64 {
	return s.End - s.Start
}

// SourceDuration is the span of source material feeding the slot.
func (s Segment) SourceDuration() float64 {
	return s.TrimOut - s.TrimIn
}

// TimeStretched reports whether the segment plays at other than native speed.
func (s Segment) TimeStretched() bool {
	return s.SpeedFactor != 1
}

// CompileTimeline fits every base clip to its slot. Source material is never
// looped or frozen to fill a short slot: a short source is slowed down to
// stretch across it, and a long source is trimmed (preferred, motion-faithful)
// or sped up to fit. Returns segments ordered by start plus the total
// timeline duration.
func CompileTimeline(s *spec.Spec, resolver *Resolver, opts Options) ([]Segment, float64, error) {
	segments := make([]Segment, 0, len(s.Videos))
	for i, clip := range s.Videos {
		segment, err := compileSegment(i, clip, resolver, opts)
		if err != nil {
			return nil, 0, err
		}
		segments = append(segments, segment)
	}

	sort.SliceStable(segments, func(a, b int) bool {
		return segments[a].Start < segments[b].Start
	})

	// Validation already rejected authored gaps and overlaps; this re-check
	// guards the compiler against skew introduced by the fitting math itself.
	if len(segments) > 0 {
		if segments[0].Start > opts.GapTolerance {
			return nil, 0, Wrap(ErrTimelineGap, "timeline", entity("clip", segments[0].Index),
				fmt.Sprintf("base track starts at %.3f, not 0", segments[0].Start), nil)
		}
		segments[0].Start = 0
	}
	for k := 1; k < len(segments); k++ {
		prev := &segments[k-1]
		cur := &segments[k]
		diff := cur.Start - prev.End
		switch {
		case diff > opts.GapTolerance:
			return nil, 0, Wrap(ErrTimelineGap, "timeline", entity("clip", cur.Index),
				fmt.Sprintf("hole of %.3fs before segment at %.3f", diff, cur.Start), nil)
		case diff < -opts.GapTolerance:
			return nil, 0, Wrap(ErrTimelineOverlap, "timeline", entity("clip", cur.Index),
				fmt.Sprintf("segment at %.3f overlaps previous ending at %.3f", cur.Start, prev.End), nil)
		default:
			// Sub-tolerance float noise: snap to a perfectly gapless seam.
			cur.Start = prev.End
		}
	}

	total := 0.0
	if len(segments) > 0 {
		total = segments[len(segments)-1].End
	}
	return segments, total, nil
}

func compileSegment(index int, clip spec.Clip, resolver *Resolver, opts Options) (Segment, error) {
	info, ok := resolver.Lookup(clip.File)
	if !ok {
		return Segment{}, Wrap(ErrInternal, "timeline", entity("clip", index), "asset duration not resolved before compilation", nil)
	}

	slot := clip.SlotDuration()
	trimIn := 0.0
	if clip.TrimIn != nil {
		trimIn = *clip.TrimIn
	}
	trimOut := info.Duration
	explicitTrim := clip.TrimOut != nil
	if explicitTrim {
		trimOut = *clip.TrimOut
	}
	if trimIn >= info.Duration {
		return Segment{}, Wrap(ErrUnfeasibleTiming, "timeline", entity("clip", index),
			fmt.Sprintf("trim_in %.3f is beyond the source's %.3fs", trimIn, info.Duration), nil)
	}
	if trimOut > info.Duration {
		return Segment{}, Wrap(ErrUnfeasibleTiming, "timeline", entity("clip", index),
			fmt.Sprintf("trim_out %.3f is beyond the source's %.3fs", trimOut, info.Duration), nil)
	}

	source := trimOut - trimIn
	factor := source / slot
	autoTrimmed := false

	switch {
	case math.Abs(source-slot) <= opts.Epsilon:
		// Within epsilon of native speed: no time transform.
		factor = 1
	case factor > 1 && opts.PreferTrim && !explicitTrim:
		// Trimming preserves motion fidelity; speed-up is the fallback for
		// explicitly trimmed material.
		trimOut = trimIn + slot
		factor = 1
		autoTrimmed = true
	}

	if factor < opts.SpeedMin || factor > opts.SpeedMax {
		return Segment{}, Wrap(ErrUnfeasibleTiming, "timeline", entity("clip", index),
			fmt.Sprintf("speed factor %.3f outside [%.2f, %.2f]", factor, opts.SpeedMin, opts.SpeedMax), nil)
	}

	return Segment{
		Index:       index,
		Source:      clip.File,
		Start:       clip.Start,
		End:         clip.End,
		TrimIn:      trimIn,
		TrimOut:     trimOut,
		SpeedFactor: factor,
		AutoTrimmed: autoTrimmed,
		GainDB:      clip.GainDB,
		HasAudio:    info.HasAudio,
	}, nil
}

func entity(kind string, index int) string {
	return fmt.Sprintf("%s[%d]", kind, index)
}
