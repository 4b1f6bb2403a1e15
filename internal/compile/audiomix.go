package compile

import (
	"fmt"
	"sort"

	"montage/internal/spec"
)

// GainSpan is a constant-gain stretch of one audio layer's envelope.
type GainSpan struct {
	Start  float64
	End    float64
	GainDB float64
}

// AudioLayer is one time-bounded input to the final mix.
type AudioLayer struct {
	ID   string
	Kind spec.TrackKind
	// Source is the asset feeding the layer. Base layers reuse the clip's
	// source with SourceStart pointing at its trim-in.
	Source      string
	SourceStart float64
	Offset      float64
	Duration    float64
	// Loop repeats the source from its start until Duration is filled; only
	// BGM layers loop, trimmed exactly at the timeline end.
	Loop      bool
	FadeIn    float64
	FadeOut   float64
	NominalDB float64
	// Envelope covers [Offset, Offset+Duration] contiguously. Gain drops by
	// the ducking amount wherever narration overlaps, restoring afterwards.
	Envelope []GainSpan
	// GainRamp is the transition length, in seconds, between envelope spans;
	// zero means hard gain steps.
	GainRamp float64
}

// MixPlan is the ordered set of audio layers handed to the emitter.
type MixPlan struct {
	Layers []AudioLayer
}

type mixInterval struct {
	index      int
	start, end float64
}

// PlanAudioMix builds the layered audio plan. Base-track audio always plays
// at the clip's nominal gain, except on time-stretched segments where it is
// replaced by silence: raw audio is never pitch-stretched. Narration plays at
// full declared gain; base and BGM are ducked underneath it. BGM loops to
// cover the full timeline and is trimmed at the total duration.
func PlanAudioMix(s *spec.Spec, segments []Segment, resolver *Resolver, total float64, opts Options) (MixPlan, error) {
	narration, err := narrationIntervals(s, resolver, total, opts)
	if err != nil {
		return MixPlan{}, err
	}

	var layers []AudioLayer

	for _, segment := range segments {
		if segment.TimeStretched() || !segment.HasAudio {
			continue
		}
		layer := AudioLayer{
			ID:          fmt.Sprintf("base/%s", entity("clip", segment.Index)),
			Kind:        spec.KindBase,
			Source:      segment.Source,
			SourceStart: segment.TrimIn,
			Offset:      segment.Start,
			Duration:    segment.SlotDuration(),
			NominalDB:   segment.GainDB,
		}
		duckLayer(&layer, narration, opts)
		layers = append(layers, layer)
	}

	for i, track := range s.Audios {
		switch track.EffectiveKind() {
		case spec.KindNarration:
			interval, ok := findInterval(narration, i)
			if !ok {
				continue
			}
			layers = append(layers, AudioLayer{
				ID:        entity("audio", i),
				Kind:      spec.KindNarration,
				Source:    track.File,
				Offset:    interval.start,
				Duration:  interval.end - interval.start,
				FadeIn:    track.FadeIn,
				FadeOut:   track.FadeOut,
				NominalDB: track.GainDB,
				Envelope:  []GainSpan{{Start: interval.start, End: interval.end, GainDB: track.GainDB}},
			})
		case spec.KindBGM:
			info, ok := resolver.Lookup(track.File)
			if !ok {
				return MixPlan{}, Wrap(ErrInternal, "audio mix", entity("audio", i), "asset duration not resolved before compilation", nil)
			}
			duration := total - track.Start
			if duration <= opts.GapTolerance {
				continue
			}
			layer := AudioLayer{
				ID:        entity("audio", i),
				Kind:      spec.KindBGM,
				Source:    track.File,
				Offset:    track.Start,
				Duration:  duration,
				Loop:      info.Duration < duration-opts.Epsilon,
				FadeIn:    track.FadeIn,
				FadeOut:   track.FadeOut,
				NominalDB: track.GainDB,
			}
			duckLayer(&layer, narration, opts)
			layers = append(layers, layer)
		case spec.KindBase:
			// Supplemental base audio mixes at nominal gain, ducked like the
			// clip-derived base layers.
			info, ok := resolver.Lookup(track.File)
			if !ok {
				return MixPlan{}, Wrap(ErrInternal, "audio mix", entity("audio", i), "asset duration not resolved before compilation", nil)
			}
			end := track.Start + info.Duration
			if track.End != nil {
				end = *track.End
			}
			if end > total {
				end = total
			}
			if end-track.Start <= opts.GapTolerance {
				continue
			}
			layer := AudioLayer{
				ID:        entity("audio", i),
				Kind:      spec.KindBase,
				Source:    track.File,
				Offset:    track.Start,
				Duration:  end - track.Start,
				FadeIn:    track.FadeIn,
				FadeOut:   track.FadeOut,
				NominalDB: track.GainDB,
			}
			duckLayer(&layer, narration, opts)
			layers = append(layers, layer)
		}
	}

	return MixPlan{Layers: layers}, nil
}

// narrationIntervals resolves each narration track to its timeline interval,
// closing open ends at the source's native duration, and re-checks the
// no-overlap rule now that native durations are known.
func narrationIntervals(s *spec.Spec, resolver *Resolver, total float64, opts Options) ([]mixInterval, error) {
	var intervals []mixInterval
	for i, track := range s.Audios {
		if track.EffectiveKind() != spec.KindNarration {
			continue
		}
		end := 0.0
		if track.End != nil {
			end = *track.End
		} else {
			info, ok := resolver.Lookup(track.File)
			if !ok {
				return nil, Wrap(ErrInternal, "audio mix", entity("audio", i), "asset duration not resolved before compilation", nil)
			}
			end = track.Start + info.Duration
		}
		if end > total {
			end = total
		}
		if end-track.Start <= opts.GapTolerance {
			continue
		}
		intervals = append(intervals, mixInterval{index: i, start: track.Start, end: end})
	}

	sorted := append([]mixInterval(nil), intervals...)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].start < sorted[b].start })
	for k := 1; k < len(sorted); k++ {
		prev := sorted[k-1]
		cur := sorted[k]
		if cur.start < prev.end-opts.GapTolerance {
			return nil, Wrap(ErrValidation, "audio mix", entity("audio", cur.index),
				fmt.Sprintf("narration overlaps audio[%d] ending at %.3f", prev.index, prev.end), nil)
		}
	}
	return intervals, nil
}

func findInterval(intervals []mixInterval, index int) (mixInterval, bool) {
	for _, interval := range intervals {
		if interval.index == index {
			return interval, true
		}
	}
	return mixInterval{}, false
}

// duckLayer fills the layer's envelope, reduced under narration, and stamps
// the restore ramp when the gain actually changes somewhere.
func duckLayer(layer *AudioLayer, narration []mixInterval, opts Options) {
	layer.Envelope = duckedEnvelope(layer.Offset, layer.Offset+layer.Duration, layer.NominalDB, narration, opts.DuckingDB)
	if len(layer.Envelope) > 1 {
		layer.GainRamp = opts.DuckFade
	}
}

// duckedEnvelope covers [start, end] with contiguous spans at nominal gain,
// reduced by duckDB wherever a narration interval overlaps.
func duckedEnvelope(start, end, nominal float64, narration []mixInterval, duckDB float64) []GainSpan {
	cuts := []float64{start, end}
	for _, interval := range narration {
		if interval.end <= start || interval.start >= end {
			continue
		}
		if interval.start > start {
			cuts = append(cuts, interval.start)
		}
		if interval.end < end {
			cuts = append(cuts, interval.end)
		}
	}
	sort.Float64s(cuts)

	var spans []GainSpan
	for k := 0; k+1 < len(cuts); k++ {
		lo, hi := cuts[k], cuts[k+1]
		if hi <= lo {
			continue
		}
		gain := nominal
		mid := (lo + hi) / 2
		for _, interval := range narration {
			if mid >= interval.start && mid < interval.end {
				gain = nominal + duckDB
				break
			}
		}
		if n := len(spans); n > 0 && spans[n-1].GainDB == gain {
			spans[n-1].End = hi
			continue
		}
		spans = append(spans, GainSpan{Start: lo, End: hi, GainDB: gain})
	}
	if len(spans) == 0 {
		spans = []GainSpan{{Start: start, End: end, GainDB: nominal}}
	}
	return spans
}
