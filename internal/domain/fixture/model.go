package fixture

import (
	"strings"
	"time"
)

const (
	StatusScheduled = "SCHEDULED"
	StatusLive      = "LIVE"
	StatusFinished  = "FINISHED"

	// OtherLeagueKey buckets results that carry no league id.
	OtherLeagueKey = "other"
)

// Fixture is a scheduled, not-yet-played match.
type Fixture struct {
	ID          string
	Competition string
	HomeTeam    string
	AwayTeam    string
	LeagueID    string
	Venue       string
	KickoffAt   time.Time
	Status      string
}

// Result is a completed match with final scores.
type Result struct {
	Fixture
	HomeScore int
	AwayScore int
}

// LeagueKey is the partition key used for per-league standings.
func (r Result) LeagueKey() string {
	key := strings.TrimSpace(r.LeagueID)
	if key == "" {
		return OtherLeagueKey
	}
	return key
}

// IsDraw reports a level final score.
func (r Result) IsDraw() bool {
	return r.HomeScore == r.AwayScore
}

func NormalizeStatus(value string) string {
	status := strings.ToUpper(strings.TrimSpace(value))
	if status == "" {
		return StatusScheduled
	}
	return status
}

func IsLiveStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusLive, "IN_PLAY", "HT", "1H", "2H", "ET":
		return true
	default:
		return false
	}
}

// IsFinishedStatus reports whether a feed status marks a completed match.
func IsFinishedStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusFinished, "COMPLETED", "FT", "AET", "PEN":
		return true
	default:
		return false
	}
}
