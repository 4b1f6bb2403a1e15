package compile_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"montage/internal/compile"
)

func TestResolveAllProbesEachAssetOnce(t *testing.T) {
	prober := newFakeProber().add("a.mp4", 5, true).add("b.mp4", 7, true)
	resolver := compile.NewResolver(prober, testOptions())

	refs := []string{"a.mp4", "b.mp4", "a.mp4", "b.mp4", "a.mp4"}
	if err := resolver.ResolveAll(context.Background(), refs); err != nil {
		t.Fatalf("ResolveAll returned error: %v", err)
	}

	for _, ref := range []string{"a.mp4", "b.mp4"} {
		if got := prober.callCount(ref); got != 1 {
			t.Fatalf("expected one probe of %s, got %d", ref, got)
		}
		info, ok := resolver.Lookup(ref)
		if !ok {
			t.Fatalf("expected %s in cache", ref)
		}
		if info.Ref != ref {
			t.Fatalf("unexpected cached ref: %q", info.Ref)
		}
	}
}

func TestConcurrentResolveDeduplicates(t *testing.T) {
	prober := newFakeProber().add("a.mp4", 5, true)
	prober.delay = 20 * time.Millisecond
	resolver := compile.NewResolver(prober, testOptions())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := resolver.Resolve(context.Background(), "a.mp4"); err != nil {
				t.Errorf("Resolve returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := prober.callCount("a.mp4"); got != 1 {
		t.Fatalf("expected concurrent resolves to share one probe, got %d", got)
	}
}

func TestResolveAllSurfacesFirstFailure(t *testing.T) {
	prober := newFakeProber().
		add("a.mp4", 5, true).
		fail("broken.mp4", errors.New("no such file"))
	resolver := compile.NewResolver(prober, testOptions())

	err := resolver.ResolveAll(context.Background(), []string{"a.mp4", "broken.mp4"})
	if err == nil {
		t.Fatal("expected probe failure to surface")
	}
	if !errors.Is(err, compile.ErrAssetUnavailable) {
		t.Fatalf("expected ErrAssetUnavailable, got: %v", err)
	}
}

func TestProbeTimeoutBecomesAssetUnavailable(t *testing.T) {
	prober := newFakeProber().add("slow.mp4", 5, true)
	prober.delay = 500 * time.Millisecond

	opts := testOptions()
	opts.ProbeTimeout = 10 * time.Millisecond
	resolver := compile.NewResolver(prober, opts)

	_, err := resolver.Resolve(context.Background(), "slow.mp4")
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !errors.Is(err, compile.ErrAssetUnavailable) {
		t.Fatalf("expected ErrAssetUnavailable, got: %v", err)
	}
}

func TestResolveRejectsNonPositiveDuration(t *testing.T) {
	prober := newFakeProber().add("empty.mp4", 0, false)
	resolver := compile.NewResolver(prober, testOptions())

	_, err := resolver.Resolve(context.Background(), "empty.mp4")
	if !errors.Is(err, compile.ErrAssetUnavailable) {
		t.Fatalf("expected ErrAssetUnavailable for zero duration, got: %v", err)
	}
}
