package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"montage/internal/compile"
	"montage/internal/config"
	"montage/internal/media/fetch"
	"montage/internal/media/probe"
	"montage/internal/spec"
)

// localizedProber probes fetched local files while keeping the compiler's
// cache keyed by original references, so plans stay independent of where a
// run happened to download its assets.
type localizedProber struct {
	inner  compile.Prober
	assets map[string]string
}

func (p localizedProber) Probe(ctx context.Context, ref string) (compile.AssetInfo, error) {
	local := ref
	if path, ok := p.assets[ref]; ok {
		local = path
	}
	info, err := p.inner.Probe(ctx, local)
	if err != nil {
		return compile.AssetInfo{}, err
	}
	info.Ref = ref
	return info, nil
}

// compileSpec runs the shared front half of plan and render: parse, fetch
// remote assets into a per-run directory, and compile. The returned cleanup
// removes downloaded files unless the workspace is kept.
func compileSpec(ctx context.Context, cfg *config.Config, cmdCtx *commandContext, specPath string) (*compile.Plan, map[string]string, func(), error) {
	parsed, err := spec.ParseFile(specPath)
	if err != nil {
		return nil, nil, nil, err
	}

	fetchDir := filepath.Join(cfg.Paths.WorkspaceDir, "fetch-"+uuid.NewString())
	cleanup := func() {
		if !cfg.Paths.KeepWorkspace {
			_ = os.RemoveAll(fetchDir)
		}
	}

	fetcher := fetch.New(fetchDir, fetch.WithTimeout(time.Duration(cfg.Tools.FetchTimeout)*time.Second))
	assets, err := fetcher.FetchAll(ctx, parsed.AssetRefs())
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	prober := localizedProber{inner: probe.NewClient(cfg.Tools.FFprobeBinary), assets: assets}
	compiler := compile.New(prober, compile.OptionsFromConfig(cfg), fallbackOutput(cfg), logger)
	plan, err := compiler.Compile(ctx, parsed)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}
	return plan, assets, cleanup, nil
}

func fallbackOutput(cfg *config.Config) compile.OutputSettings {
	return compile.OutputSettings{
		Width:  cfg.Output.Width,
		Height: cfg.Output.Height,
		FPS:    float64(cfg.Output.FPS),
	}
}

func formatDuration(seconds float64) string {
	return fmt.Sprintf("%.3fs", seconds)
}
