package compile

import (
	"context"
	"sync"
)

// AssetInfo is the resolved native metadata for one media asset. Immutable
// once cached; every entity referencing the same source shares one entry.
type AssetInfo struct {
	Ref      string
	Duration float64
	Width    int
	Height   int
	HasAudio bool
}

// Prober reports native duration and resolution for an asset reference. The
// production implementation shells out to ffprobe; tests substitute fakes.
type Prober interface {
	Probe(ctx context.Context, ref string) (AssetInfo, error)
}

// Resolver caches asset metadata for the lifetime of a single compile run.
// There is deliberately no cross-run persistence: assets may change between
// invocations, so every run starts cold.
type Resolver struct {
	prober Prober
	opts   Options

	mu       sync.Mutex
	cache    map[string]AssetInfo
	inflight map[string]chan struct{}
}

// NewResolver builds a cold resolver around the provided prober.
func NewResolver(prober Prober, opts Options) *Resolver {
	return &Resolver{
		prober:   prober,
		opts:     opts,
		cache:    make(map[string]AssetInfo),
		inflight: make(map[string]chan struct{}),
	}
}

// Resolve returns the asset's metadata, probing at most once per unique
// reference. Concurrent calls for the same reference wait on the first probe
// rather than racing it; the first completed probe wins the cache slot.
func (r *Resolver) Resolve(ctx context.Context, ref string) (AssetInfo, error) {
	for {
		r.mu.Lock()
		if info, ok := r.cache[ref]; ok {
			r.mu.Unlock()
			return info, nil
		}
		if wait, ok := r.inflight[ref]; ok {
			r.mu.Unlock()
			select {
			case <-wait:
				continue
			case <-ctx.Done():
				return AssetInfo{}, Wrap(ErrAssetUnavailable, "probe", ref, "cancelled while waiting", ctx.Err())
			}
		}
		done := make(chan struct{})
		r.inflight[ref] = done
		r.mu.Unlock()

		info, err := r.probeOnce(ctx, ref)

		r.mu.Lock()
		delete(r.inflight, ref)
		if err == nil {
			if existing, ok := r.cache[ref]; ok {
				info = existing
			} else {
				r.cache[ref] = info
			}
		}
		close(done)
		r.mu.Unlock()

		if err != nil {
			return AssetInfo{}, err
		}
		return info, nil
	}
}

func (r *Resolver) probeOnce(ctx context.Context, ref string) (AssetInfo, error) {
	probeCtx := ctx
	if r.opts.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, r.opts.ProbeTimeout)
		defer cancel()
	}
	info, err := r.prober.Probe(probeCtx, ref)
	if err != nil {
		return AssetInfo{}, Wrap(ErrAssetUnavailable, "probe", ref, "", err)
	}
	if info.Duration <= 0 {
		return AssetInfo{}, Wrap(ErrAssetUnavailable, "probe", ref, "reported non-positive duration", nil)
	}
	info.Ref = ref
	return info, nil
}

// ResolveAll probes every unique reference with bounded concurrency. All
// probes must succeed before timeline compilation can run; the first failure
// cancels the remainder and surfaces as the run's fatal error.
func (r *Resolver) ResolveAll(ctx context.Context, refs []string) error {
	unique := dedupeRefs(refs)
	if len(unique) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := r.opts.ProbeWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(unique) {
		workers = len(unique)
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	var errMu sync.Mutex
	var firstErr error

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				if _, err := r.Resolve(ctx, ref); err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
						cancel()
					}
					errMu.Unlock()
					return
				}
			}
		}()
	}

feed:
	for _, ref := range unique {
		select {
		case jobs <- ref:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	errMu.Lock()
	defer errMu.Unlock()
	return firstErr
}

// Lookup returns cached metadata without triggering a probe.
func (r *Resolver) Lookup(ref string) (AssetInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.cache[ref]
	return info, ok
}

func dedupeRefs(refs []string) []string {
	seen := make(map[string]struct{}, len(refs))
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}
