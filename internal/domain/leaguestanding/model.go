package leaguestanding

// Row is one team's line in a league table. Rows are always derived from
// results and never stored.
type Row struct {
	Position       int
	Team           string
	Played         int
	Won            int
	Draw           int
	Lost           int
	GoalsFor       int
	GoalsAgainst   int
	GoalDifference int
	Points         int
}

const (
	PointsWin  = 3
	PointsDraw = 1
)
