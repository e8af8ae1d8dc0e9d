package news

import "time"

// Report is a match report.
type Report struct {
	ID          string
	Title       string
	Summary     string
	Body        string
	ImageURL    string
	MatchID     string
	PublishedAt time.Time
}

// Announcement is club or competition news not tied to a single match.
type Announcement struct {
	ID          string
	Title       string
	Summary     string
	Body        string
	ImageURL    string
	PublishedAt time.Time
}
