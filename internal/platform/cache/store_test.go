package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestStore_GetOrLoadVersion_UsesSingleFlight(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	var calls atomic.Int32

	loader := func(context.Context) (any, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "value", nil
	}

	const workers = 32
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	errCh := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			v, err := store.GetOrLoadVersion(context.Background(), 1, "same-key", loader)
			if err != nil {
				errCh <- err
				return
			}
			if got, _ := v.(string); got != "value" {
				errCh <- errUnexpectedValue
			}
		}()
	}

	close(start)
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := calls.Load(); got != 1 {
		t.Fatalf("loader called %d times, want 1", got)
	}
}

func TestStore_GetOrLoadVersion_EvictsOlderVersions(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Minute)
	var calls atomic.Int32
	loader := func(context.Context) (any, error) {
		return calls.Add(1), nil
	}

	ctx := context.Background()
	first, err := store.GetOrLoadVersion(ctx, 1, "standings", loader)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	again, _ := store.GetOrLoadVersion(ctx, 1, "standings", loader)
	if first != again {
		t.Fatalf("expected memoized value for same version, got %v and %v", first, again)
	}

	next, _ := store.GetOrLoadVersion(ctx, 2, "standings", loader)
	if next == first {
		t.Fatalf("expected recompute for newer version")
	}
	if stale, _ := store.GetOrLoadVersion(ctx, 1, "standings", loader); stale == first {
		t.Fatalf("expected older version to be evicted and not stored again")
	}
	if again, _ := store.GetOrLoadVersion(ctx, 2, "standings", loader); again != next {
		t.Fatalf("expected newest version to stay memoized, got %v want %v", again, next)
	}

	if _, err := store.GetOrLoadVersion(ctx, 0, "standings", loader); err == nil {
		t.Fatalf("expected error for zero version")
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	t.Parallel()

	store := NewStore(time.Second)
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	var calls atomic.Int32
	loader := func(context.Context) (any, error) {
		return calls.Add(1), nil
	}

	ctx := context.Background()
	_, _ = store.GetOrLoadVersion(ctx, 1, "k", loader)
	_, _ = store.GetOrLoadVersion(ctx, 1, "k", loader)
	if calls.Load() != 1 {
		t.Fatalf("expected fresh entry to be served, calls=%d", calls.Load())
	}
	now = now.Add(2 * time.Second)
	_, _ = store.GetOrLoadVersion(ctx, 1, "k", loader)
	if calls.Load() != 2 {
		t.Fatalf("expected expired entry to be reloaded, calls=%d", calls.Load())
	}
}

func TestStore_DisabledAlwaysLoads(t *testing.T) {
	t.Parallel()

	store := NewDisabled()
	var calls atomic.Int32
	loader := func(context.Context) (any, error) {
		calls.Add(1)
		return "x", nil
	}
	for i := 0; i < 3; i++ {
		if _, err := store.GetOrLoadVersion(context.Background(), 1, "k", loader); err != nil {
			t.Fatalf("load: %v", err)
		}
	}
	if calls.Load() != 3 {
		t.Fatalf("expected loader on every call, got %d", calls.Load())
	}
}

var errUnexpectedValue = errors.New("unexpected loaded value")
