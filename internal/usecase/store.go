package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/matchday-sync/internal/domain/snapshot"
	"github.com/riskibarqy/matchday-sync/internal/platform/logging"
)

const defaultRefreshWorkers = 4

type StoreConfig struct {
	// RefreshWorkers bounds concurrent Refresh loads. Extra requests are
	// dropped with a warning while every worker is busy.
	RefreshWorkers int
	// DiscardStaleLoads drops a load that resolves after a newer one was
	// already published. By default the last load to resolve wins.
	DiscardStaleLoads bool
	Now               func() time.Time
}

// Store owns the current snapshot. Every mutation runs under one lock and
// builds a new snapshot; readers never block. Subscribers are notified after
// the lock is released, one snapshot at a time, in publish order.
type Store struct {
	loader  SnapshotLoader
	channel PushChannel
	merger  *LiveEventMerger
	logger  *logging.Logger
	now     func() time.Time
	pool    *ants.Pool

	discardStale bool

	mu             sync.Mutex
	current        atomic.Pointer[snapshot.Snapshot]
	version        uint64
	inFlight       int
	lastStarted    uint64
	lastPublished  uint64
	closed         atomic.Bool
	detachChannel  func()
	baseCtx        context.Context
	cancelBase     context.CancelFunc
	startOnce      sync.Once
	closeOnce      sync.Once
	subscribersMu  sync.Mutex
	subscribers    []subscriber
	nextSubscriber uint64

	outboxMu   sync.Mutex
	outbox     []*snapshot.Snapshot
	delivering bool
}

type subscriber struct {
	id uint64
	fn func(*snapshot.Snapshot)
}

func NewStore(loader SnapshotLoader, channel PushChannel, logger *logging.Logger, cfg StoreConfig) (*Store, error) {
	if loader == nil {
		return nil, fmt.Errorf("%w: snapshot loader is required", ErrInvalidInput)
	}
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	workers := cfg.RefreshWorkers
	if workers <= 0 {
		workers = defaultRefreshWorkers
	}

	pool, err := ants.NewPool(workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(recovered any) {
			logger.Error("refresh worker panicked", "panic", recovered)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create refresh pool: %w", err)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		loader:       loader,
		channel:      channel,
		logger:       logger,
		now:          now,
		pool:         pool,
		discardStale: cfg.DiscardStaleLoads,
		baseCtx:      baseCtx,
		cancelBase:   cancel,
	}
	s.merger = NewLiveEventMerger(s, logger)

	s.mu.Lock()
	s.publishLocked(snapshot.Empty())
	s.mu.Unlock()
	s.deliver()

	return s, nil
}

// Snapshot returns the current snapshot. Callers must not modify it.
func (s *Store) Snapshot() *snapshot.Snapshot {
	return s.current.Load()
}

// Start attaches the live event channel and runs the initial load. Later
// calls only rerun the load.
func (s *Store) Start(ctx context.Context) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.Store.Start")
	defer span.End()

	if s.closed.Load() {
		return ErrStoreClosed
	}

	s.startOnce.Do(func() {
		detach := s.merger.Attach(s.channel)
		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			detach()
			return
		}
		s.detachChannel = detach
		s.mu.Unlock()
	})

	s.load(ctx)
	return nil
}

// Refresh schedules a background load and returns at once. It never fails;
// failures end up in Snapshot().Error.
func (s *Store) Refresh() {
	if s.closed.Load() {
		s.logger.Warn("refresh ignored, store is closed")
		return
	}

	if err := s.pool.Submit(func() {
		s.load(s.baseCtx)
	}); err != nil {
		s.logger.Warn("refresh dropped", "error", err, "running", s.pool.Running())
	}
}

// Subscribe registers fn for every published snapshot, in publish order. fn
// runs outside the mutation lock and never concurrently with another
// notification, so it may call Refresh or ApplyLiveEvent; snapshots published
// from inside fn are delivered after it returns. The returned func is
// idempotent.
func (s *Store) Subscribe(fn func(*snapshot.Snapshot)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	s.subscribersMu.Lock()
	s.nextSubscriber++
	id := s.nextSubscriber
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn})
	s.subscribersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subscribersMu.Lock()
			defer s.subscribersMu.Unlock()
			for i, item := range s.subscribers {
				if item.id == id {
					s.subscribers = append(s.subscribers[:i:i], s.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

// ApplyLiveEvent merges patch into the live record of matchID. Only that key
// of the live map changes; every other field is shared with the previous
// snapshot.
func (s *Store) ApplyLiveEvent(matchID string, patch map[string]any) {
	defer s.deliver()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return
	}

	next := *s.current.Load()
	next.LiveEvents = next.LiveEvents.Apply(matchID, patch, s.now())
	s.publishLocked(next)
}

// Close detaches the live channel, stops accepting refreshes and drops every
// subscriber. Loads still in flight are discarded when they resolve.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		detach := s.detachChannel
		s.detachChannel = nil
		s.mu.Unlock()

		if detach != nil {
			detach()
		}
		s.cancelBase()
		s.pool.Release()

		s.subscribersMu.Lock()
		s.subscribers = nil
		s.subscribersMu.Unlock()

		s.outboxMu.Lock()
		s.outbox = nil
		s.outboxMu.Unlock()
	})
}

func (s *Store) load(ctx context.Context) {
	generation, ok := s.beginLoad()
	if !ok {
		return
	}

	loaded := s.loader.Load(ctx)
	s.finishLoad(generation, loaded)
}

func (s *Store) beginLoad() (uint64, bool) {
	defer s.deliver()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return 0, false
	}

	s.lastStarted++
	s.inFlight++
	if s.inFlight == 1 {
		next := *s.current.Load()
		next.Loading = true
		s.publishLocked(next)
	}
	return s.lastStarted, true
}

func (s *Store) finishLoad(generation uint64, loaded snapshot.Snapshot) {
	defer s.deliver()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight--
	if s.closed.Load() {
		return
	}

	next := *s.current.Load()
	if s.discardStale && generation < s.lastPublished {
		s.logger.Debug("discard stale load", "generation", generation, "published", s.lastPublished)
		if s.inFlight == 0 && next.Loading {
			next.Loading = false
			s.publishLocked(next)
		}
		return
	}

	if generation > s.lastPublished {
		s.lastPublished = generation
	}
	next = next.WithCollections(loaded.Collections())
	next.Error = loaded.Error
	next.Loading = s.inFlight > 0
	s.publishLocked(next)
}

// publishLocked must be called with s.mu held. The caller runs deliver once
// s.mu is released.
func (s *Store) publishLocked(next snapshot.Snapshot) {
	s.version++
	next.Version = s.version
	next.UpdatedAt = s.now().UTC()
	published := &next
	s.current.Store(published)

	s.outboxMu.Lock()
	s.outbox = append(s.outbox, published)
	s.outboxMu.Unlock()
}

// deliver drains the outbox in publish order. Only one goroutine drains at a
// time; a caller that finds a drain in progress leaves its snapshots to it,
// which also covers publishes made from inside a subscriber.
func (s *Store) deliver() {
	s.outboxMu.Lock()
	if s.delivering {
		s.outboxMu.Unlock()
		return
	}
	s.delivering = true

	for len(s.outbox) > 0 {
		published := s.outbox[0]
		s.outbox[0] = nil
		s.outbox = s.outbox[1:]
		s.outboxMu.Unlock()

		s.subscribersMu.Lock()
		listeners := make([]subscriber, len(s.subscribers))
		copy(listeners, s.subscribers)
		s.subscribersMu.Unlock()

		for _, item := range listeners {
			s.notify(item, published)
		}

		s.outboxMu.Lock()
	}

	s.delivering = false
	s.outboxMu.Unlock()
}

func (s *Store) notify(item subscriber, published *snapshot.Snapshot) {
	defer func() {
		if recovered := recover(); recovered != nil {
			s.logger.Error("snapshot subscriber panicked", "subscriber", item.id, "panic", recovered)
		}
	}()
	item.fn(published)
}
