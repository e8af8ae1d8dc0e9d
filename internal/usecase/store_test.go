package usecase

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/riskibarqy/matchday-sync/internal/domain/fixture"
	"github.com/riskibarqy/matchday-sync/internal/domain/liveevent"
	"github.com/riskibarqy/matchday-sync/internal/domain/snapshot"
	"github.com/riskibarqy/matchday-sync/internal/platform/logging"
)

type loaderFunc func(ctx context.Context) snapshot.Snapshot

func (f loaderFunc) Load(ctx context.Context) snapshot.Snapshot {
	return f(ctx)
}

type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.now
	c.now = c.now.Add(c.step)
	return current
}

func staticLoader(collections snapshot.Collections) SnapshotLoader {
	return loaderFunc(func(context.Context) snapshot.Snapshot {
		return snapshot.Snapshot{}.WithCollections(collections)
	})
}

func newTestStore(t *testing.T, loader SnapshotLoader, channel PushChannel, cfg StoreConfig) *Store {
	t.Helper()

	if cfg.Now == nil {
		cfg.Now = func() time.Time { return fixedLoadTime }
	}
	store, err := NewStore(loader, channel, logging.NewNop(), cfg)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestNewStore_RequiresLoader(t *testing.T) {
	t.Parallel()

	if _, err := NewStore(nil, nil, logging.NewNop(), StoreConfig{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestStore_InitialSnapshotIsEmpty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, staticLoader(sampleCollections()), nil, StoreConfig{})
	snap := store.Snapshot()

	assertNoNilCollections(t, *snap)
	if snap.Version == 0 || snap.Loading || snap.Error != "" {
		t.Fatalf("unexpected initial snapshot: version=%d loading=%v error=%q", snap.Version, snap.Loading, snap.Error)
	}
	if len(snap.Fixtures) != 0 {
		t.Fatalf("expected empty fixtures before the first load")
	}
}

func TestStore_Start_PublishesLoadingThenLoaded(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, staticLoader(sampleCollections()), nil, StoreConfig{})

	var mu sync.Mutex
	var loadingFlags []bool
	var versions []uint64
	store.Subscribe(func(snap *snapshot.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		loadingFlags = append(loadingFlags, snap.Loading)
		versions = append(versions, snap.Version)
	})

	if err := store.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !reflect.DeepEqual(loadingFlags, []bool{true, false}) {
		t.Fatalf("unexpected loading sequence: %v", loadingFlags)
	}
	if versions[1] <= versions[0] {
		t.Fatalf("expected increasing versions, got=%v", versions)
	}

	snap := store.Snapshot()
	if !reflect.DeepEqual(snap.Collections(), sampleCollections()) {
		t.Fatalf("unexpected loaded collections: %+v", snap.Collections())
	}
}

func TestStore_LoadErrorIsPublishedAndClearedOnSuccess(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	loader := loaderFunc(func(context.Context) snapshot.Snapshot {
		out := snapshot.Empty()
		if calls.Add(1) == 1 {
			out.Error = "The match feed is down for maintenance."
			return out
		}
		return out.WithCollections(sampleCollections())
	})
	store := newTestStore(t, loader, nil, StoreConfig{})

	_ = store.Start(context.Background())
	if got := store.Snapshot().Error; got != "The match feed is down for maintenance." {
		t.Fatalf("expected error to be published, got=%q", got)
	}
	assertNoNilCollections(t, *store.Snapshot())

	_ = store.Start(context.Background())
	if got := store.Snapshot().Error; got != "" {
		t.Fatalf("expected error to clear after a good load, got=%q", got)
	}
}

func TestStore_LiveEventsForSameMatchKeepOlderFields(t *testing.T) {
	t.Parallel()

	clock := &stepClock{now: fixedLoadTime, step: time.Second}
	channel := newStubPushChannel()
	store := newTestStore(t, staticLoader(sampleCollections()), channel, StoreConfig{Now: clock.Now})
	if err := store.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	channel.emit(liveevent.UpdateEvent, `{"matchId":"42","payload":{"status":"LIVE","home_score":0,"away_score":0}}`)
	channel.emit(liveevent.UpdateEvent, `{"matchId":"42","payload":{"home_score":1}}`)

	record := store.Snapshot().LiveEvents["42"]
	if record.Status() != "LIVE" {
		t.Fatalf("expected status to be preserved, got=%v", record)
	}
	if home, _ := record.HomeScore(); home != 1 {
		t.Fatalf("expected home_score=1, got=%v", record)
	}
	if away, ok := record.AwayScore(); !ok || away != 0 {
		t.Fatalf("expected away_score=0 to be preserved, got=%v", record)
	}
	if len(record) != 4 {
		t.Fatalf("expected exactly status, scores and lastUpdate, got=%v", record)
	}

	first, _ := store.Snapshot().LiveEvents["42"].LastUpdate()
	channel.emit(liveevent.UpdateEvent, `{"matchId":"42","payload":{"minute":50}}`)
	second, _ := store.Snapshot().LiveEvents["42"].LastUpdate()
	if !second.After(first) {
		t.Fatalf("expected lastUpdate to advance, first=%s second=%s", first, second)
	}
}

func TestStore_ApplyLiveEvent_FieldPreservation(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, staticLoader(sampleCollections()), nil, StoreConfig{})
	store.ApplyLiveEvent("m-1", map[string]any{"status": "LIVE", "home_score": 1})
	store.ApplyLiveEvent("m-1", map[string]any{"away_score": 2})

	want := liveevent.Record{
		"status":     "LIVE",
		"home_score": 1,
		"away_score": 2,
		"lastUpdate": fixedLoadTime.Format(time.RFC3339Nano),
	}
	if got := store.Snapshot().LiveEvents["m-1"]; !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected merged record: got=%v want=%v", got, want)
	}
}

func TestStore_LiveEventsAcrossMatchesCommute(t *testing.T) {
	t.Parallel()

	apply := func(order []string) liveevent.Map {
		store := newTestStore(t, staticLoader(sampleCollections()), nil, StoreConfig{})
		patches := map[string]map[string]any{
			"A": {"status": "LIVE", "home_score": 1},
			"B": {"status": "HT", "away_score": 3},
		}
		for _, id := range order {
			store.ApplyLiveEvent(id, patches[id])
		}
		return store.Snapshot().LiveEvents
	}

	if ab, ba := apply([]string{"A", "B"}), apply([]string{"B", "A"}); !reflect.DeepEqual(ab, ba) {
		t.Fatalf("expected commuting merges, got=%v and %v", ab, ba)
	}
}

func TestStore_LiveEventSharesUnrelatedState(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, staticLoader(sampleCollections()), nil, StoreConfig{})
	_ = store.Start(context.Background())
	store.ApplyLiveEvent("A", map[string]any{"status": "LIVE"})

	before := store.Snapshot()
	store.ApplyLiveEvent("B", map[string]any{"status": "LIVE"})
	after := store.Snapshot()

	if before == after || after.Version <= before.Version {
		t.Fatalf("expected a new snapshot with a higher version")
	}
	if &before.Fixtures[0] != &after.Fixtures[0] || &before.Results[0] != &after.Results[0] {
		t.Fatalf("expected collections to be shared, not copied")
	}
	if reflect.ValueOf(before.LiveEvents["A"]).Pointer() != reflect.ValueOf(after.LiveEvents["A"]).Pointer() {
		t.Fatalf("expected untouched live record to be shared")
	}
	if _, ok := before.LiveEvents["B"]; ok {
		t.Fatalf("expected previous snapshot to stay unchanged")
	}
}

func TestStore_LoadKeepsLiveEvents(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, staticLoader(sampleCollections()), nil, StoreConfig{})
	store.ApplyLiveEvent("42", map[string]any{"status": "LIVE"})
	_ = store.Start(context.Background())

	if got := store.Snapshot().LiveEvents["42"].Status(); got != "LIVE" {
		t.Fatalf("expected live record to survive a load, got=%q", got)
	}
}

func TestStore_Refresh_RunsInBackground(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	loader := loaderFunc(func(context.Context) snapshot.Snapshot {
		calls.Add(1)
		return snapshot.Snapshot{}.WithCollections(sampleCollections())
	})
	store := newTestStore(t, loader, nil, StoreConfig{RefreshWorkers: 2})

	store.Refresh()
	waitFor(t, func() bool {
		snap := store.Snapshot()
		return calls.Load() == 1 && !snap.Loading && len(snap.Fixtures) == 1
	})
}

func TestStore_OverlappingLoads(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		discardStale bool
		wantFixture  string
	}{
		{name: "last resolved wins", discardStale: false, wantFixture: "first"},
		{name: "stale load discarded", discardStale: true, wantFixture: "second"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			release := make(chan struct{})
			entered := make(chan struct{})
			var calls atomic.Int32
			loader := loaderFunc(func(context.Context) snapshot.Snapshot {
				if calls.Add(1) == 1 {
					close(entered)
					<-release
					return snapshot.Snapshot{}.WithCollections(snapshot.Collections{
						Fixtures: []fixture.Fixture{{ID: "first"}},
					})
				}
				return snapshot.Snapshot{}.WithCollections(snapshot.Collections{
					Fixtures: []fixture.Fixture{{ID: "second"}},
				})
			})
			store := newTestStore(t, loader, nil, StoreConfig{DiscardStaleLoads: tc.discardStale})

			done := make(chan struct{})
			go func() {
				defer close(done)
				store.load(context.Background())
			}()
			<-entered

			store.load(context.Background())
			if !store.Snapshot().Loading {
				t.Fatalf("expected loading while the first load is in flight")
			}
			close(release)
			<-done

			snap := store.Snapshot()
			if snap.Loading {
				t.Fatalf("expected loading=false once every load resolved")
			}
			if got := snap.Fixtures[0].ID; got != tc.wantFixture {
				t.Fatalf("unexpected visible fixture: got=%s want=%s", got, tc.wantFixture)
			}
		})
	}
}

func TestStore_SubscribeAndUnsubscribe(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, staticLoader(sampleCollections()), nil, StoreConfig{})

	var first, second atomic.Int32
	unsubscribe := store.Subscribe(func(*snapshot.Snapshot) { first.Add(1) })
	store.Subscribe(func(*snapshot.Snapshot) { second.Add(1) })

	store.ApplyLiveEvent("1", map[string]any{})
	unsubscribe()
	unsubscribe()
	store.ApplyLiveEvent("2", map[string]any{})

	if first.Load() != 1 {
		t.Fatalf("expected unsubscribed listener to stop, got=%d calls", first.Load())
	}
	if second.Load() != 2 {
		t.Fatalf("expected remaining listener to keep receiving, got=%d calls", second.Load())
	}
}

func TestStore_SubscriberPanicDoesNotBreakPublish(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, staticLoader(sampleCollections()), nil, StoreConfig{})
	var calls atomic.Int32
	store.Subscribe(func(*snapshot.Snapshot) { panic("consumer bug") })
	store.Subscribe(func(*snapshot.Snapshot) { calls.Add(1) })

	store.ApplyLiveEvent("1", map[string]any{"minute": 3})

	if calls.Load() != 1 {
		t.Fatalf("expected later subscribers to be notified, got=%d", calls.Load())
	}
	if _, ok := store.Snapshot().LiveEvents["1"]; !ok {
		t.Fatalf("expected live event to be applied")
	}
}

func TestStore_CloseTearsDownOnce(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	loader := loaderFunc(func(context.Context) snapshot.Snapshot {
		calls.Add(1)
		return snapshot.Snapshot{}.WithCollections(sampleCollections())
	})
	channel := newStubPushChannel()
	store := newTestStore(t, loader, channel, StoreConfig{})
	if err := store.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	var notified atomic.Int32
	store.Subscribe(func(*snapshot.Snapshot) { notified.Add(1) })

	store.Close()
	store.Close()

	if channel.unsubscribes != 1 || channel.offConnects != 1 {
		t.Fatalf("expected one channel teardown, unsubscribes=%d offConnects=%d", channel.unsubscribes, channel.offConnects)
	}
	if channel.emit(liveevent.UpdateEvent, `{"matchId":"1","payload":{}}`) {
		t.Fatalf("expected live handler to be removed")
	}

	before := store.Snapshot()
	store.Refresh()
	store.ApplyLiveEvent("1", map[string]any{"status": "LIVE"})
	if err := store.Start(context.Background()); !errors.Is(err, ErrStoreClosed) {
		t.Fatalf("expected store closed error, got %v", err)
	}
	if store.Snapshot() != before {
		t.Fatalf("expected no publish after close")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected no load after close, got=%d", calls.Load())
	}
	if notified.Load() != 0 {
		t.Fatalf("expected no notification after close, got=%d", notified.Load())
	}
}

func TestStore_LoadResolvingAfterCloseIsDiscarded(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	entered := make(chan struct{})
	loader := loaderFunc(func(context.Context) snapshot.Snapshot {
		close(entered)
		<-release
		return snapshot.Snapshot{}.WithCollections(sampleCollections())
	})
	store := newTestStore(t, loader, nil, StoreConfig{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = store.Start(context.Background())
	}()
	<-entered

	store.Close()
	close(release)
	<-done

	if len(store.Snapshot().Fixtures) != 0 {
		t.Fatalf("expected load resolved after close to be discarded")
	}
}

func TestStore_SubscriberCanRefreshOnError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	loader := loaderFunc(func(context.Context) snapshot.Snapshot {
		out := snapshot.Empty()
		if calls.Add(1) == 1 {
			out.Error = "boom"
			return out
		}
		return out.WithCollections(sampleCollections())
	})
	store := newTestStore(t, loader, nil, StoreConfig{})

	var retried atomic.Bool
	store.Subscribe(func(snap *snapshot.Snapshot) {
		if snap.Error != "" && retried.CompareAndSwap(false, true) {
			store.Refresh()
		}
	})

	started := make(chan struct{})
	go func() {
		defer close(started)
		_ = store.Start(context.Background())
	}()
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatalf("start blocked while a subscriber refreshed")
	}

	waitFor(t, func() bool {
		snap := store.Snapshot()
		return calls.Load() == 2 && snap.Error == "" && !snap.Loading && len(snap.Fixtures) == 1
	})
}

func TestStore_ReentrantPublishKeepsOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, staticLoader(sampleCollections()), nil, StoreConfig{})

	var mu sync.Mutex
	var versions []uint64
	store.Subscribe(func(snap *snapshot.Snapshot) {
		mu.Lock()
		versions = append(versions, snap.Version)
		mu.Unlock()
		if _, ok := snap.LiveEvents["echo"]; !ok {
			store.ApplyLiveEvent("echo", map[string]any{"status": "LIVE"})
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.ApplyLiveEvent("1", map[string]any{"minute": 1})
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publish from a subscriber blocked")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(versions) != 2 || versions[1] != versions[0]+1 {
		t.Fatalf("expected two ordered notifications, got=%v", versions)
	}
	if got := store.Snapshot().LiveEvents["echo"].Status(); got != "LIVE" {
		t.Fatalf("expected nested publish to apply, got=%q", got)
	}
}
