package compile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"montage/internal/spec"
)

// PlanVersion identifies the plan schema for downstream consumers.
const PlanVersion = 1

// OpKind enumerates the operations a plan can instruct the encoder to run.
type OpKind string

const (
	OpTrim      OpKind = "trim"
	OpSpeed     OpKind = "speed"
	OpScale     OpKind = "scale"
	OpOverlay   OpKind = "overlay"
	OpSubtitles OpKind = "subtitles"
	OpMix       OpKind = "mix"
	OpConcat    OpKind = "concat"
	OpFinalize  OpKind = "finalize"
)

// TrimOp selects the source interval feeding a segment's slot.
type TrimOp struct {
	Segment   int     `json:"segment"`
	Source    string  `json:"source"`
	TrimIn    float64 `json:"trim_in"`
	TrimOut   float64 `json:"trim_out"`
	SlotStart float64 `json:"slot_start"`
	SlotEnd   float64 `json:"slot_end"`
	GainDB    float64 `json:"gain_db,omitempty"`
}

// SpeedOp applies a time transform so the trimmed source fills its slot.
type SpeedOp struct {
	Segment int     `json:"segment"`
	Factor  float64 `json:"factor"`
}

// ScaleOp normalizes a segment to the output rendition.
type ScaleOp struct {
	Segment int     `json:"segment"`
	Width   int     `json:"width"`
	Height  int     `json:"height"`
	FPS     float64 `json:"fps"`
}

// OverlayOp layers one overlay over the composed base track. Ops appear in
// draw order, bottom to top.
type OverlayOp struct {
	Source  string        `json:"source"`
	X       float64       `json:"x"`
	Y       float64       `json:"y"`
	Width   float64       `json:"width"`
	Height  float64       `json:"height"`
	Z       int           `json:"z"`
	Windows []spec.Window `json:"windows"`
}

// SubtitlesOp attaches the cue list for burn-in.
type SubtitlesOp struct {
	Cues []spec.Cue `json:"cues"`
}

// MixOp contributes one audio layer to the final mix.
type MixOp struct {
	Layer AudioLayer `json:"layer"`
}

// ConcatOp joins the rendered segments into the gapless base track.
type ConcatOp struct {
	Segments int `json:"segments"`
}

// FinalizeOp closes the plan with the target rendition.
type FinalizeOp struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	FPS           float64 `json:"fps"`
	TotalDuration float64 `json:"total_duration"`
}

// Op is a single instruction. Exactly one payload field matching Kind is set.
type Op struct {
	Kind      OpKind       `json:"kind"`
	Trim      *TrimOp      `json:"trim,omitempty"`
	Speed     *SpeedOp     `json:"speed,omitempty"`
	Scale     *ScaleOp     `json:"scale,omitempty"`
	Overlay   *OverlayOp   `json:"overlay,omitempty"`
	Subtitles *SubtitlesOp `json:"subtitles,omitempty"`
	Mix       *MixOp       `json:"mix,omitempty"`
	Concat    *ConcatOp    `json:"concat,omitempty"`
	Finalize  *FinalizeOp  `json:"finalize,omitempty"`
}

// OutputSettings is the target rendition carried through the plan.
type OutputSettings struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	FPS    float64 `json:"fps"`
}

// Plan is the compiler's sole output artifact: a fully-ordered, declarative
// operation list with no timing left for the encoder to infer. It is a pure
// value; the same spec and asset state always produce a byte-identical plan.
type Plan struct {
	Version       int            `json:"version"`
	Output        OutputSettings `json:"output"`
	TotalDuration float64        `json:"total_duration"`
	Ops           []Op           `json:"ops"`
}

// Encode writes the plan as indented JSON.
func (p *Plan) Encode(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(p)
}

// Digest returns a stable content hash of the plan. Struct-ordered JSON keys
// make the serialization canonical, so equal plans hash equally.
func (p *Plan) Digest() string {
	data, err := json.Marshal(p)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// EmitPlan linearizes the compiled stages into the operation list:
// trim, speed, scale per segment, then overlays, subtitles, mix layers,
// concat, finalize. The defensive checks here re-verify upstream invariants;
// a failure is a compiler bug surfaced as ErrInternal, never downgraded.
func EmitPlan(segments []Segment, overlays []OverlayPlacement, cues []spec.Cue, mix MixPlan, output OutputSettings, total float64, opts Options) (*Plan, error) {
	if err := checkEmitterInput(segments, overlays, mix, total, opts); err != nil {
		return nil, err
	}

	ops := make([]Op, 0, len(segments)*3+len(overlays)+len(mix.Layers)+3)
	for i, segment := range segments {
		ops = append(ops, Op{Kind: OpTrim, Trim: &TrimOp{
			Segment:   i,
			Source:    segment.Source,
			TrimIn:    segment.TrimIn,
			TrimOut:   segment.TrimOut,
			SlotStart: segment.Start,
			SlotEnd:   segment.End,
			GainDB:    segment.GainDB,
		}})
		if segment.TimeStretched() {
			ops = append(ops, Op{Kind: OpSpeed, Speed: &SpeedOp{Segment: i, Factor: segment.SpeedFactor}})
		}
		ops = append(ops, Op{Kind: OpScale, Scale: &ScaleOp{
			Segment: i,
			Width:   output.Width,
			Height:  output.Height,
			FPS:     output.FPS,
		}})
	}

	for _, placement := range overlays {
		ops = append(ops, Op{Kind: OpOverlay, Overlay: &OverlayOp{
			Source:  placement.Source,
			X:       placement.Position[0],
			Y:       placement.Position[1],
			Width:   placement.Size[0],
			Height:  placement.Size[1],
			Z:       placement.Z,
			Windows: placement.Windows,
		}})
	}

	if len(cues) > 0 {
		sorted := append([]spec.Cue(nil), cues...)
		sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Start < sorted[b].Start })
		ops = append(ops, Op{Kind: OpSubtitles, Subtitles: &SubtitlesOp{Cues: sorted}})
	}

	for _, layer := range mix.Layers {
		ops = append(ops, Op{Kind: OpMix, Mix: &MixOp{Layer: layer}})
	}

	ops = append(ops,
		Op{Kind: OpConcat, Concat: &ConcatOp{Segments: len(segments)}},
		Op{Kind: OpFinalize, Finalize: &FinalizeOp{
			Width:         output.Width,
			Height:        output.Height,
			FPS:           output.FPS,
			TotalDuration: total,
		}},
	)

	return &Plan{
		Version:       PlanVersion,
		Output:        output,
		TotalDuration: total,
		Ops:           ops,
	}, nil
}

func checkEmitterInput(segments []Segment, overlays []OverlayPlacement, mix MixPlan, total float64, opts Options) error {
	cursor := 0.0
	for i, segment := range segments {
		if segment.Start != cursor {
			return Wrap(ErrInternal, "emit", entity("segment", i),
				fmt.Sprintf("starts at %.6f, expected %.6f", segment.Start, cursor), nil)
		}
		if segment.End <= segment.Start {
			return Wrap(ErrInternal, "emit", entity("segment", i), "non-positive slot", nil)
		}
		if segment.SpeedFactor <= 0 {
			return Wrap(ErrInternal, "emit", entity("segment", i), "non-positive speed factor", nil)
		}
		cursor = segment.End
	}
	if len(segments) > 0 && cursor != total {
		return Wrap(ErrInternal, "emit", "timeline",
			fmt.Sprintf("segments end at %.6f, total is %.6f", cursor, total), nil)
	}

	for _, placement := range overlays {
		prevEnd := -1.0
		for _, window := range placement.Windows {
			if window.Start < -opts.GapTolerance || window.End > total+opts.GapTolerance {
				return Wrap(ErrInternal, "emit", entity("overlay", placement.Index), "window outside timeline bounds", nil)
			}
			if window.Start < prevEnd {
				return Wrap(ErrInternal, "emit", entity("overlay", placement.Index), "windows not disjoint", nil)
			}
			prevEnd = window.End
		}
	}

	for _, layer := range mix.Layers {
		if len(layer.Envelope) == 0 {
			return Wrap(ErrInternal, "emit", layer.ID, "empty gain envelope", nil)
		}
		first := layer.Envelope[0]
		last := layer.Envelope[len(layer.Envelope)-1]
		if first.Start != layer.Offset || last.End != layer.Offset+layer.Duration {
			return Wrap(ErrInternal, "emit", layer.ID, "envelope does not cover the layer interval", nil)
		}
		for k := 1; k < len(layer.Envelope); k++ {
			if layer.Envelope[k].Start != layer.Envelope[k-1].End {
				return Wrap(ErrInternal, "emit", layer.ID, "envelope spans not contiguous", nil)
			}
		}
	}
	return nil
}
