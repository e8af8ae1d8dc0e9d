package leaguestanding

import (
	"sort"
	"strings"

	"github.com/riskibarqy/matchday-sync/internal/domain/fixture"
)

// Compute builds a single table from results. Rows are registered in the
// order teams are first encountered and sorted by points only; teams level on
// points keep encounter order (no goal difference or head-to-head tie-break).
func Compute(results []fixture.Result) []Row {
	rows := make([]Row, 0, len(results))
	index := make(map[string]int, len(results))

	register := func(team string) int {
		if i, ok := index[team]; ok {
			return i
		}
		index[team] = len(rows)
		rows = append(rows, Row{Team: team})
		return len(rows) - 1
	}

	for _, result := range results {
		homeIdx := register(result.HomeTeam)
		awayIdx := register(result.AwayTeam)
		applyResult(&rows[homeIdx], &rows[awayIdx], result)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Points > rows[j].Points
	})
	for i := range rows {
		rows[i].Position = i + 1
	}

	return rows
}

// ComputeByLeague partitions results by league key and computes each table
// independently.
func ComputeByLeague(results []fixture.Result) map[string][]Row {
	buckets := make(map[string][]fixture.Result)
	for _, result := range results {
		key := result.LeagueKey()
		buckets[key] = append(buckets[key], result)
	}

	out := make(map[string][]Row, len(buckets))
	for key, items := range buckets {
		out[key] = Compute(items)
	}
	return out
}

// ComputeForLeague computes the table for one league key. An empty key means
// one table across every result.
func ComputeForLeague(results []fixture.Result, leagueKey string) []Row {
	leagueKey = strings.TrimSpace(leagueKey)
	if leagueKey == "" {
		return Compute(results)
	}

	filtered := make([]fixture.Result, 0, len(results))
	for _, result := range results {
		if result.LeagueKey() == leagueKey {
			filtered = append(filtered, result)
		}
	}
	return Compute(filtered)
}

func applyResult(home, away *Row, result fixture.Result) {
	home.Played++
	away.Played++

	home.GoalsFor += result.HomeScore
	home.GoalsAgainst += result.AwayScore
	away.GoalsFor += result.AwayScore
	away.GoalsAgainst += result.HomeScore
	home.GoalDifference = home.GoalsFor - home.GoalsAgainst
	away.GoalDifference = away.GoalsFor - away.GoalsAgainst

	switch {
	case result.IsDraw():
		home.Draw++
		away.Draw++
		home.Points += PointsDraw
		away.Points += PointsDraw
	case result.HomeScore > result.AwayScore:
		home.Won++
		away.Lost++
		home.Points += PointsWin
	default:
		away.Won++
		home.Lost++
		away.Points += PointsWin
	}
}
