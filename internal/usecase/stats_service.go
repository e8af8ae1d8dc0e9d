package usecase

import (
	"context"
	"sort"
	"strings"

	"github.com/riskibarqy/matchday-sync/internal/domain/fixture"
	"github.com/riskibarqy/matchday-sync/internal/domain/leader"
	"github.com/riskibarqy/matchday-sync/internal/domain/leaguestanding"
	"github.com/riskibarqy/matchday-sync/internal/domain/liveevent"
	"github.com/riskibarqy/matchday-sync/internal/domain/snapshot"
	"github.com/riskibarqy/matchday-sync/internal/platform/cache"
	"github.com/riskibarqy/matchday-sync/internal/platform/logging"
)

// StatsService derives standings, leaderboards and the match centre from a
// snapshot. Derived values are memoized per snapshot version and only reused
// for the same snapshot; a snapshot without a version is always computed
// fresh.
type StatsService struct {
	memo   *cache.Store
	logger *logging.Logger
}

// MatchCentreEntry is a fixture joined with its live record, if any.
type MatchCentreEntry struct {
	Fixture fixture.Fixture
	Live    liveevent.Record
	IsLive  bool
}

func NewStatsService(memo *cache.Store, logger *logging.Logger) *StatsService {
	if memo == nil {
		memo = cache.NewDisabled()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StatsService{
		memo:   memo,
		logger: logger,
	}
}

// ComputeStandings returns the table for leagueKey, or one table across every
// result when leagueKey is empty. Only results feed the table.
func (s *StatsService) ComputeStandings(ctx context.Context, snap *snapshot.Snapshot, leagueKey string) []leaguestanding.Row {
	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.ComputeStandings")
	defer span.End()

	if snap == nil {
		return []leaguestanding.Row{}
	}
	leagueKey = strings.TrimSpace(leagueKey)

	rows, ok := memoize(ctx, s, snap, "standings:"+leagueKey, func() []leaguestanding.Row {
		return leaguestanding.ComputeForLeague(snap.Results, leagueKey)
	})
	if !ok {
		return leaguestanding.ComputeForLeague(snap.Results, leagueKey)
	}
	return cloneRows(rows)
}

// LeagueTables returns one table per league key.
func (s *StatsService) LeagueTables(ctx context.Context, snap *snapshot.Snapshot) map[string][]leaguestanding.Row {
	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.LeagueTables")
	defer span.End()

	if snap == nil {
		return map[string][]leaguestanding.Row{}
	}

	tables, ok := memoize(ctx, s, snap, "tables", func() map[string][]leaguestanding.Row {
		return leaguestanding.ComputeByLeague(snap.Results)
	})
	if !ok {
		return leaguestanding.ComputeByLeague(snap.Results)
	}

	out := make(map[string][]leaguestanding.Row, len(tables))
	for key, rows := range tables {
		out[key] = cloneRows(rows)
	}
	return out
}

// GetLeaders returns the precomputed board for category. Unknown categories
// yield an empty list.
func (s *StatsService) GetLeaders(_ context.Context, snap *snapshot.Snapshot, category string) []leader.Leader {
	if snap == nil {
		return []leader.Leader{}
	}
	return leader.Lookup(snap.Leaders, leader.ParseCategory(category))
}

// TopLeaders returns at most limit leaders for category. A limit below one
// returns the whole list.
func (s *StatsService) TopLeaders(ctx context.Context, snap *snapshot.Snapshot, category string, limit int) []leader.Leader {
	if snap == nil {
		return []leader.Leader{}
	}
	if limit < 1 {
		return s.GetLeaders(ctx, snap, category)
	}
	return leader.Top(snap.Leaders, leader.ParseCategory(category), limit)
}

// MatchCentre lists fixtures with their live records. Live matches come
// first; otherwise the fixture order is kept.
func (s *StatsService) MatchCentre(ctx context.Context, snap *snapshot.Snapshot) []MatchCentreEntry {
	ctx, span := startUsecaseSpan(ctx, "usecase.StatsService.MatchCentre")
	defer span.End()

	if snap == nil {
		return []MatchCentreEntry{}
	}

	entries, ok := memoize(ctx, s, snap, "match-centre", func() []MatchCentreEntry {
		return buildMatchCentre(snap)
	})
	if !ok {
		return buildMatchCentre(snap)
	}
	out := make([]MatchCentreEntry, len(entries))
	copy(out, entries)
	return out
}

func buildMatchCentre(snap *snapshot.Snapshot) []MatchCentreEntry {
	out := make([]MatchCentreEntry, 0, len(snap.Fixtures))
	for _, item := range snap.Fixtures {
		entry := MatchCentreEntry{Fixture: item}
		if record, ok := snap.LiveEvents[item.ID]; ok {
			entry.Live = record
			entry.IsLive = fixture.IsLiveStatus(record.Status())
		} else {
			entry.IsLive = fixture.IsLiveStatus(item.Status)
		}
		out = append(out, entry)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IsLive && !out[j].IsLive
	})
	return out
}

// memoEntry remembers which snapshot a value was derived from. Versions are
// only unique within one Store, so a hit for a different snapshot is a miss.
type memoEntry struct {
	source *snapshot.Snapshot
	value  any
}

// memoize caches compute under the snapshot version. ok is false when the
// value could not be memoized and the caller should compute directly.
func memoize[T any](ctx context.Context, s *StatsService, snap *snapshot.Snapshot, key string, compute func() T) (T, bool) {
	var zero T
	if snap.Version == 0 {
		return zero, false
	}

	value, err := s.memo.GetOrLoadVersion(ctx, snap.Version, key, func(context.Context) (any, error) {
		return memoEntry{source: snap, value: compute()}, nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "stats memo failed", "key", key, "version", snap.Version, "error", err)
		return zero, false
	}
	entry, ok := value.(memoEntry)
	if !ok || entry.source != snap {
		return zero, false
	}
	typed, ok := entry.value.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

func cloneRows(rows []leaguestanding.Row) []leaguestanding.Row {
	out := make([]leaguestanding.Row, len(rows))
	copy(out, rows)
	return out
}
