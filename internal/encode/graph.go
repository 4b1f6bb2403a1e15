package encode

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"montage/internal/compile"
	"montage/internal/spec"
)

// segmentPlan collects the per-segment ops the plan emitted.
type segmentPlan struct {
	trim  *compile.TrimOp
	speed *compile.SpeedOp
	scale *compile.ScaleOp
}

type decodedPlan struct {
	segments  []segmentPlan
	overlays  []*compile.OverlayOp
	subtitles *compile.SubtitlesOp
	layers    []compile.AudioLayer
	finalize  *compile.FinalizeOp
}

// decodePlan groups the linear op list back into executable stages. A plan
// that does not follow the emitter's ordering contract is rejected.
func decodePlan(plan *compile.Plan) (*decodedPlan, error) {
	if plan == nil {
		return nil, fmt.Errorf("decode plan: nil plan")
	}
	decoded := &decodedPlan{}
	for _, op := range plan.Ops {
		switch op.Kind {
		case compile.OpTrim:
			if op.Trim == nil {
				return nil, fmt.Errorf("decode plan: trim op without payload")
			}
			if op.Trim.Segment != len(decoded.segments) {
				return nil, fmt.Errorf("decode plan: segment %d out of order", op.Trim.Segment)
			}
			decoded.segments = append(decoded.segments, segmentPlan{trim: op.Trim})
		case compile.OpSpeed:
			if op.Speed == nil || op.Speed.Segment >= len(decoded.segments) {
				return nil, fmt.Errorf("decode plan: dangling speed op")
			}
			decoded.segments[op.Speed.Segment].speed = op.Speed
		case compile.OpScale:
			if op.Scale == nil || op.Scale.Segment >= len(decoded.segments) {
				return nil, fmt.Errorf("decode plan: dangling scale op")
			}
			decoded.segments[op.Scale.Segment].scale = op.Scale
		case compile.OpOverlay:
			decoded.overlays = append(decoded.overlays, op.Overlay)
		case compile.OpSubtitles:
			decoded.subtitles = op.Subtitles
		case compile.OpMix:
			if op.Mix == nil {
				return nil, fmt.Errorf("decode plan: mix op without payload")
			}
			decoded.layers = append(decoded.layers, op.Mix.Layer)
		case compile.OpConcat:
			if op.Concat != nil && op.Concat.Segments != len(decoded.segments) {
				return nil, fmt.Errorf("decode plan: concat expects %d segments, have %d", op.Concat.Segments, len(decoded.segments))
			}
		case compile.OpFinalize:
			decoded.finalize = op.Finalize
		default:
			return nil, fmt.Errorf("decode plan: unknown op kind %q", op.Kind)
		}
	}
	if decoded.finalize == nil {
		return nil, fmt.Errorf("decode plan: missing finalize op")
	}
	if len(decoded.segments) == 0 {
		return nil, fmt.Errorf("decode plan: no segments")
	}
	return decoded, nil
}

// segmentArgs builds the ffmpeg invocation that renders one base segment:
// trim, optional time transform, and normalization to the output rendition.
// Source audio is dropped here; the mix graph reattaches it.
func segmentArgs(seg segmentPlan, source, dst, preset string, crf int) []string {
	trim := seg.trim
	sourceDur := trim.TrimOut - trim.TrimIn

	args := []string{"-y", "-loglevel", "error"}
	args = append(args, "-ss", formatSeconds(trim.TrimIn), "-t", formatSeconds(sourceDur), "-i", source)

	filters := make([]string, 0, 3)
	if seg.speed != nil {
		// setpts with the inverse factor: a 0.5x factor doubles timestamps,
		// stretching the material into slow motion across its slot.
		filters = append(filters, fmt.Sprintf("setpts=%s*PTS", formatFloat(1/seg.speed.Factor)))
	}
	if seg.scale != nil {
		filters = append(filters,
			fmt.Sprintf("scale=%d:%d", seg.scale.Width, seg.scale.Height),
			fmt.Sprintf("fps=%s", formatFloat(seg.scale.FPS)),
		)
	}
	if len(filters) > 0 {
		args = append(args, "-vf", strings.Join(filters, ","))
	}
	args = append(args,
		"-reset_timestamps", "1",
		"-an",
		"-c:v", "libx264", "-preset", preset, "-crf", strconv.Itoa(crf),
		dst,
	)
	return args
}

// overlayChain appends the scale+overlay filter pair for one overlay input.
func overlayChain(parts *[]string, inputIndex int, last string, op *compile.OverlayOp) string {
	scaled := fmt.Sprintf("s%d", inputIndex)
	out := fmt.Sprintf("v%d", inputIndex)
	*parts = append(*parts,
		fmt.Sprintf("[%d:v]scale=iw*%s:ih*%s[%s]", inputIndex, formatFloat(op.Width), formatFloat(op.Height), scaled),
		fmt.Sprintf("[%s][%s]overlay=main_w*%s:main_h*%s:enable='%s'[%s]",
			last, scaled, formatFloat(op.X), formatFloat(op.Y), enableExpr(op.Windows), out),
	)
	return out
}

// enableExpr gates an overlay to its visibility windows.
func enableExpr(windows []spec.Window) string {
	terms := make([]string, 0, len(windows))
	for _, window := range windows {
		terms = append(terms, fmt.Sprintf("between(t,%s,%s)", formatFloat(window.Start), formatFloat(window.End)))
	}
	return strings.Join(terms, "+")
}

// audioChain builds the filter chain preparing one mix layer: source window
// trim, gain envelope, fades, then delay to its timeline offset.
func audioChain(inputIndex int, layer compile.AudioLayer) (string, string) {
	label := fmt.Sprintf("a%d", inputIndex)
	var chain []string

	chain = append(chain, fmt.Sprintf("atrim=start=%s:end=%s",
		formatFloat(layer.SourceStart), formatFloat(layer.SourceStart+layer.Duration)))
	chain = append(chain, "asetpts=PTS-STARTPTS")

	// Envelope spans are absolute; after the PTS reset the layer's local
	// clock starts at zero, so gain windows shift by the offset.
	switch {
	case layer.GainRamp > 0 && len(layer.Envelope) > 1:
		chain = append(chain, fmt.Sprintf("volume=volume='%s':eval=frame",
			rampedVolumeExpr(layer.Envelope, layer.Offset, layer.GainRamp)))
	default:
		for _, span := range layer.Envelope {
			if span.GainDB == 0 {
				continue
			}
			chain = append(chain, fmt.Sprintf("volume=volume=%sdB:enable='between(t,%s,%s)'",
				formatFloat(span.GainDB), formatFloat(span.Start-layer.Offset), formatFloat(span.End-layer.Offset)))
		}
	}
	if layer.FadeIn > 0 {
		chain = append(chain, fmt.Sprintf("afade=t=in:st=0:d=%s", formatFloat(layer.FadeIn)))
	}
	if layer.FadeOut > 0 {
		chain = append(chain, fmt.Sprintf("afade=t=out:st=%s:d=%s",
			formatFloat(layer.Duration-layer.FadeOut), formatFloat(layer.FadeOut)))
	}
	if layer.Offset > 0 {
		ms := int(math.Round(layer.Offset * 1000))
		chain = append(chain, fmt.Sprintf("adelay=%d|%d", ms, ms))
	}

	return fmt.Sprintf("[%d:a]%s[%s]", inputIndex, strings.Join(chain, ","), label), label
}

// rampedVolumeExpr builds a piecewise-linear gain expression over the layer's
// local clock: constant inside each span, with a linear transition of length
// ramp centered on every span boundary, so ducking eases in and restores
// instead of stepping.
func rampedVolumeExpr(envelope []compile.GainSpan, offset, ramp float64) string {
	linear := func(db float64) float64 {
		return math.Pow(10, db/20)
	}
	half := ramp / 2

	expr := formatFloat(linear(envelope[len(envelope)-1].GainDB))
	for i := len(envelope) - 2; i >= 0; i-- {
		boundary := envelope[i].End - offset
		from := linear(envelope[i].GainDB)
		to := linear(envelope[i+1].GainDB)
		expr = fmt.Sprintf("if(lt(t,%s),%s,if(lt(t,%s),%s+(%s)*(t-%s)/%s,%s))",
			formatFloat(boundary-half), formatFloat(from),
			formatFloat(boundary+half), formatFloat(from), formatFloat(to-from), formatFloat(boundary-half), formatFloat(ramp),
			expr)
	}
	return expr
}

func formatSeconds(v float64) string {
	return formatFloat(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
