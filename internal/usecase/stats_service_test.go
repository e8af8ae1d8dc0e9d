package usecase

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/riskibarqy/matchday-sync/internal/domain/fixture"
	"github.com/riskibarqy/matchday-sync/internal/domain/leader"
	"github.com/riskibarqy/matchday-sync/internal/domain/liveevent"
	"github.com/riskibarqy/matchday-sync/internal/domain/snapshot"
	"github.com/riskibarqy/matchday-sync/internal/platform/cache"
	"github.com/riskibarqy/matchday-sync/internal/platform/logging"
)

func snapshotWithResults(version uint64, results ...fixture.Result) *snapshot.Snapshot {
	snap := snapshot.Empty().WithCollections(snapshot.Collections{Results: results})
	snap.Version = version
	return &snap
}

func played(leagueID, home, away string, homeScore, awayScore int) fixture.Result {
	return fixture.Result{
		Fixture:   fixture.Fixture{LeagueID: leagueID, HomeTeam: home, AwayTeam: away},
		HomeScore: homeScore,
		AwayScore: awayScore,
	}
}

func newTestStatsService() *StatsService {
	return NewStatsService(cache.NewStore(time.Minute), logging.NewNop())
}

func TestStatsService_ComputeStandings_PointsRule(t *testing.T) {
	t.Parallel()

	service := newTestStatsService()
	snap := snapshotWithResults(1,
		played("", "A", "B", 2, 1),
		played("", "B", "A", 0, 0),
	)

	rows := service.ComputeStandings(context.Background(), snap, "")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got=%d", len(rows))
	}
	if rows[0].Team != "A" || rows[0].Played != 2 || rows[0].Points != 4 {
		t.Fatalf("unexpected row for A: %+v", rows[0])
	}
	if rows[1].Team != "B" || rows[1].Played != 2 || rows[1].Points != 1 {
		t.Fatalf("unexpected row for B: %+v", rows[1])
	}
}

func TestStatsService_ComputeStandings_DeterministicAndMemoized(t *testing.T) {
	t.Parallel()

	service := newTestStatsService()
	snap := snapshotWithResults(7,
		played("epl", "Arsenal", "Chelsea", 1, 1),
		played("epl", "Liverpool", "Arsenal", 0, 2),
	)

	first := service.ComputeStandings(context.Background(), snap, "epl")
	first[0].Points = 99
	second := service.ComputeStandings(context.Background(), snap, "epl")
	if second[0].Points == 99 {
		t.Fatalf("expected callers to get their own copy of memoized rows")
	}

	third := service.ComputeStandings(context.Background(), snap, "epl")
	if !reflect.DeepEqual(second, third) {
		t.Fatalf("expected identical output for the same snapshot, got=%+v and %+v", second, third)
	}

	unversioned := *snap
	unversioned.Version = 0
	if got := service.ComputeStandings(context.Background(), &unversioned, "epl"); !reflect.DeepEqual(got, third) {
		t.Fatalf("expected unversioned snapshot to compute the same rows, got=%+v", got)
	}
}

func TestStatsService_ComputeStandings_NewVersionRecomputes(t *testing.T) {
	t.Parallel()

	service := newTestStatsService()
	before := service.ComputeStandings(context.Background(), snapshotWithResults(1, played("", "A", "B", 1, 0)), "")
	after := service.ComputeStandings(context.Background(), snapshotWithResults(2, played("", "A", "B", 0, 1)), "")

	if before[0].Team != "A" || after[0].Team != "B" {
		t.Fatalf("expected a fresh table for the new snapshot, before=%+v after=%+v", before, after)
	}
}

func TestStatsService_EmptyInputs(t *testing.T) {
	t.Parallel()

	service := newTestStatsService()
	snap := snapshotWithResults(3)

	if rows := service.ComputeStandings(context.Background(), snap, ""); rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty standings, got=%v", rows)
	}
	if rows := service.ComputeStandings(context.Background(), nil, "epl"); rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty standings for nil snapshot, got=%v", rows)
	}
	if got := service.GetLeaders(context.Background(), snap, "nonexistent"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty leaders, got=%v", got)
	}
	if got := service.GetLeaders(context.Background(), nil, "goals"); got == nil || len(got) != 0 {
		t.Fatalf("expected empty leaders for nil snapshot, got=%v", got)
	}
	if tables := service.LeagueTables(context.Background(), snap); len(tables) != 0 {
		t.Fatalf("expected no tables, got=%v", tables)
	}
}

func TestStatsService_GetLeaders_PassesThroughBoard(t *testing.T) {
	t.Parallel()

	service := newTestStatsService()
	snap := snapshot.Empty().WithCollections(sampleCollections())

	got := service.GetLeaders(context.Background(), &snap, " GOALS ")
	want := []leader.Leader{{Player: "Haaland", Team: "City", Value: 21}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected leaders: %+v", got)
	}
}

func TestStatsService_LeagueTables_PartitionsByLeague(t *testing.T) {
	t.Parallel()

	service := newTestStatsService()
	snap := snapshotWithResults(4,
		played("epl", "Arsenal", "Chelsea", 2, 0),
		played("", "Ajax", "PSV", 0, 1),
	)

	tables := service.LeagueTables(context.Background(), snap)
	if len(tables) != 2 {
		t.Fatalf("expected 2 tables, got=%d", len(tables))
	}
	if tables["epl"][0].Team != "Arsenal" || tables[fixture.OtherLeagueKey][0].Team != "PSV" {
		t.Fatalf("unexpected tables: %+v", tables)
	}
}

func TestStatsService_MatchCentre_LiveFirst(t *testing.T) {
	t.Parallel()

	service := newTestStatsService()
	snap := snapshot.Empty().WithCollections(snapshot.Collections{
		Fixtures: []fixture.Fixture{
			{ID: "1", HomeTeam: "A", AwayTeam: "B", Status: fixture.StatusScheduled},
			{ID: "2", HomeTeam: "C", AwayTeam: "D", Status: fixture.StatusScheduled},
			{ID: "3", HomeTeam: "E", AwayTeam: "F", Status: fixture.StatusScheduled},
		},
	})
	snap.LiveEvents = liveevent.Map{
		"3": {"status": "LIVE", "home_score": 1},
	}
	snap.Version = 9

	entries := service.MatchCentre(context.Background(), &snap)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got=%d", len(entries))
	}
	if entries[0].Fixture.ID != "3" || !entries[0].IsLive || entries[0].Live.Status() != "LIVE" {
		t.Fatalf("expected live match first, got=%+v", entries[0])
	}
	if entries[1].Fixture.ID != "1" || entries[2].Fixture.ID != "2" || entries[1].Live != nil {
		t.Fatalf("expected remaining fixtures in feed order, got=%+v", entries[1:])
	}
}

func TestStatsService_TopLeaders(t *testing.T) {
	t.Parallel()

	service := newTestStatsService()
	snap := snapshot.Empty()
	snap.Leaders = leader.Board{
		leader.CategoryAssists: {
			{Player: "Saka", Team: "Arsenal", Value: 9},
			{Player: "Palmer", Team: "Chelsea", Value: 8},
			{Player: "Salah", Team: "Liverpool", Value: 7},
		},
	}

	if got := service.TopLeaders(context.Background(), &snap, "assists", 2); len(got) != 2 || got[1].Player != "Palmer" {
		t.Fatalf("expected the first two leaders, got=%+v", got)
	}
	if got := service.TopLeaders(context.Background(), &snap, "assists", 0); len(got) != 3 {
		t.Fatalf("expected no cap for a zero limit, got=%+v", got)
	}
	if got := service.TopLeaders(context.Background(), nil, "assists", 2); got == nil || len(got) != 0 {
		t.Fatalf("expected empty leaders for nil snapshot, got=%v", got)
	}
}

func TestStatsService_SameVersionFromAnotherSnapshotIsNotShared(t *testing.T) {
	t.Parallel()

	service := newTestStatsService()
	first := snapshotWithResults(5, played("", "A", "B", 3, 0))
	other := snapshotWithResults(5, played("", "C", "D", 0, 2))

	if rows := service.ComputeStandings(context.Background(), first, ""); rows[0].Team != "A" {
		t.Fatalf("unexpected table for the first snapshot: %+v", rows)
	}
	rows := service.ComputeStandings(context.Background(), other, "")
	if rows[0].Team != "D" || rows[1].Team != "C" {
		t.Fatalf("expected a table computed from the other snapshot, got=%+v", rows)
	}
	if again := service.ComputeStandings(context.Background(), first, ""); again[0].Team != "A" {
		t.Fatalf("expected the first snapshot to keep its own table, got=%+v", again)
	}
}
