package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry struct {
	value     any
	version   uint64
	expiresAt time.Time
}

// Store is an in-memory memo with optional TTL. Entries written through the
// versioned API are dropped as soon as a newer version is seen, so callers can
// key derived values on the identity of the data they were computed from.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]entry
	ttl      time.Duration
	newest   uint64
	flight   singleflight.Group
	now      func() time.Time
	disabled bool
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// NewDisabled returns a store that never retains anything; GetOrLoadVersion
// always runs the loader.
func NewDisabled() *Store {
	s := NewStore(0)
	s.disabled = true
	return s
}

func (s *Store) get(key string) (any, bool) {
	if key == "" || s.disabled {
		return nil, false
	}

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && !e.expiresAt.After(s.now()) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

func (s *Store) set(_ context.Context, key string, version uint64, value any) {
	if key == "" || s.disabled {
		return
	}

	expiresAt := time.Time{}
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	if version > 0 && version < s.newest {
		s.mu.Unlock()
		return
	}
	s.entries[key] = entry{
		value:     value,
		version:   version,
		expiresAt: expiresAt,
	}
	s.mu.Unlock()
}

// GetOrLoadVersion memoizes loader under (version, key). Seeing a newer version
// evicts every versioned entry of an older one.
func (s *Store) GetOrLoadVersion(ctx context.Context, version uint64, key string, loader func(context.Context) (any, error)) (any, error) {
	if version == 0 {
		return nil, fmt.Errorf("version must be greater than zero")
	}
	s.advance(version)
	return s.getOrLoad(ctx, versionedKey(version, key), version, loader)
}

func (s *Store) getOrLoad(ctx context.Context, key string, version uint64, loader func(context.Context) (any, error)) (any, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if key == "" || s.disabled {
		return loader(ctx)
	}

	if value, ok := s.get(key); ok {
		return value, nil
	}

	value, err, _ := s.flight.Do(key, func() (any, error) {
		if cached, ok := s.get(key); ok {
			return cached, nil
		}

		loaded, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		s.set(ctx, key, version, loaded)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

func (s *Store) advance(version uint64) {
	s.mu.RLock()
	stale := version > s.newest
	s.mu.RUnlock()
	if !stale {
		return
	}

	s.mu.Lock()
	if version > s.newest {
		s.newest = version
		for key, e := range s.entries {
			if e.version > 0 && e.version < version {
				delete(s.entries, key)
			}
		}
	}
	s.mu.Unlock()
}

func versionedKey(version uint64, key string) string {
	return "v" + strconv.FormatUint(version, 10) + ":" + key
}
