package compile

import (
	"context"
	"log/slog"
	"time"

	"montage/internal/logging"
	"montage/internal/spec"
)

// Compiler turns a validated spec into a CompositionPlan. Compilation is pure
// apart from asset probing; the same spec and asset state always yield the
// same plan.
type Compiler struct {
	prober   Prober
	opts     Options
	fallback OutputSettings
	logger   *slog.Logger
}

// New constructs a compiler. The fallback output settings fill in whatever
// the spec's output block omits.
func New(prober Prober, opts Options, fallback OutputSettings, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Compiler{prober: prober, opts: opts, fallback: fallback, logger: logger}
}

// Compile validates the spec, resolves every asset's native duration, and
// runs the timeline, overlay, and audio stages before emitting the plan.
// Any failure aborts the run; no partial plan is ever produced.
func (c *Compiler) Compile(ctx context.Context, s *spec.Spec) (*Plan, error) {
	if err := spec.Validate(s, c.opts.GapTolerance); err != nil {
		return nil, Wrap(ErrValidation, "spec", "", "", err)
	}

	resolver := NewResolver(c.prober, c.opts)
	refs := s.AssetRefs()
	started := time.Now()
	if err := resolver.ResolveAll(ctx, refs); err != nil {
		return nil, err
	}
	c.logger.Debug("assets resolved",
		logging.Int("assets", len(refs)),
		logging.Duration("elapsed", time.Since(started)))

	segments, total, err := CompileTimeline(s, resolver, c.opts)
	if err != nil {
		return nil, err
	}

	overlays, err := ResolveOverlays(s, resolver, total, c.opts)
	if err != nil {
		return nil, err
	}

	mix, err := PlanAudioMix(s, segments, resolver, total, c.opts)
	if err != nil {
		return nil, err
	}

	plan, err := EmitPlan(segments, overlays, s.Subtitles, mix, c.outputSettings(s), total, c.opts)
	if err != nil {
		return nil, err
	}

	c.logger.Info("plan compiled",
		logging.Int("segments", len(segments)),
		logging.Int("overlays", len(overlays)),
		logging.Int("audio_layers", len(mix.Layers)),
		logging.Float64("total_duration", total),
		logging.String("digest", plan.Digest()[:12]))
	return plan, nil
}

func (c *Compiler) outputSettings(s *spec.Spec) OutputSettings {
	out := OutputSettings{
		Width:  s.Output.Resolution[0],
		Height: s.Output.Resolution[1],
		FPS:    s.Output.FPS,
	}
	if out.Width <= 0 {
		out.Width = c.fallback.Width
	}
	if out.Height <= 0 {
		out.Height = c.fallback.Height
	}
	if out.FPS <= 0 {
		out.FPS = c.fallback.FPS
	}
	return out
}
