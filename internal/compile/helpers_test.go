package compile_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"montage/internal/compile"
)

// fakeProber serves canned asset metadata and records call counts.
type fakeProber struct {
	mu    sync.Mutex
	calls map[string]int
	infos map[string]compile.AssetInfo
	errs  map[string]error
	delay time.Duration
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		calls: make(map[string]int),
		infos: make(map[string]compile.AssetInfo),
		errs:  make(map[string]error),
	}
}

func (p *fakeProber) add(ref string, duration float64, hasAudio bool) *fakeProber {
	p.infos[ref] = compile.AssetInfo{Ref: ref, Duration: duration, Width: 1920, Height: 1080, HasAudio: hasAudio}
	return p
}

func (p *fakeProber) fail(ref string, err error) *fakeProber {
	p.errs[ref] = err
	return p
}

func (p *fakeProber) Probe(ctx context.Context, ref string) (compile.AssetInfo, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return compile.AssetInfo{}, ctx.Err()
		}
	}
	p.mu.Lock()
	p.calls[ref]++
	p.mu.Unlock()
	if err, ok := p.errs[ref]; ok {
		return compile.AssetInfo{}, err
	}
	if info, ok := p.infos[ref]; ok {
		return info, nil
	}
	return compile.AssetInfo{}, fmt.Errorf("unknown asset %q", ref)
}

func (p *fakeProber) callCount(ref string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[ref]
}

func testOptions() compile.Options {
	opts := compile.DefaultOptions()
	opts.ProbeWorkers = 2
	opts.ProbeTimeout = time.Second
	return opts
}

func resolveAll(p *fakeProber, refs ...string) *compile.Resolver {
	resolver := compile.NewResolver(p, testOptions())
	if err := resolver.ResolveAll(context.Background(), refs); err != nil {
		panic(err)
	}
	return resolver
}
