package compile

import (
	"time"

	"montage/internal/config"
)

// Options carries the tuning knobs for a compile run.
type Options struct {
	// Epsilon is the slack, in seconds, within which a speed factor counts as
	// exactly 1.0 and no time transform is emitted.
	Epsilon float64
	// GapTolerance separates floating-point noise from a true timeline hole.
	GapTolerance float64
	// SpeedMin and SpeedMax clamp acceptable speed factors; anything outside
	// fails with ErrUnfeasibleTiming instead of producing unwatchable output.
	SpeedMin float64
	SpeedMax float64
	// PreferTrim selects trimming over speed-up when a source overruns its
	// slot and the clip carries no authored trim.
	PreferTrim bool
	// DuckingDB is the (negative) gain applied to base and BGM layers while
	// narration plays.
	DuckingDB float64
	// DuckFade is the envelope ramp, in seconds, used when restoring gain
	// after a ducked span.
	DuckFade float64
	// ProbeWorkers bounds concurrent asset probing.
	ProbeWorkers int
	// ProbeTimeout bounds a single asset probe; a hang becomes a fatal
	// ErrAssetUnavailable instead of blocking the run.
	ProbeTimeout time.Duration
}

// DefaultOptions mirrors the repository configuration defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(nil)
}

// OptionsFromConfig derives compile options from loaded configuration. A nil
// config yields the built-in defaults.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		def := config.Default()
		cfg = &def
		// Default() leaves normalization to Load; apply the same fallbacks.
	}
	opts := Options{
		Epsilon:      float64(cfg.Compiler.EpsilonMS) / 1000,
		GapTolerance: float64(cfg.Compiler.GapToleranceMS) / 1000,
		SpeedMin:     cfg.Compiler.SpeedMin,
		SpeedMax:     cfg.Compiler.SpeedMax,
		PreferTrim:   cfg.Compiler.PreferTrim,
		DuckingDB:    cfg.Compiler.DuckingDB,
		DuckFade:     cfg.Compiler.DuckFade,
		ProbeWorkers: cfg.Tools.ProbeWorkers,
		ProbeTimeout: time.Duration(cfg.Tools.ProbeTimeout) * time.Second,
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = 0.001
	}
	if opts.GapTolerance <= 0 {
		opts.GapTolerance = 0.001
	}
	if opts.SpeedMin <= 0 {
		opts.SpeedMin = 0.25
	}
	if opts.SpeedMax <= 0 {
		opts.SpeedMax = 4.0
	}
	if opts.DuckingDB == 0 {
		opts.DuckingDB = -12.0
	}
	if opts.DuckFade <= 0 {
		opts.DuckFade = 0.25
	}
	if opts.ProbeWorkers <= 0 {
		opts.ProbeWorkers = 4
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 30 * time.Second
	}
	return opts
}
