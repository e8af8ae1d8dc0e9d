package snapshot

import (
	"time"

	"github.com/riskibarqy/matchday-sync/internal/domain/fixture"
	"github.com/riskibarqy/matchday-sync/internal/domain/leader"
	"github.com/riskibarqy/matchday-sync/internal/domain/league"
	"github.com/riskibarqy/matchday-sync/internal/domain/liveevent"
	"github.com/riskibarqy/matchday-sync/internal/domain/news"
	"github.com/riskibarqy/matchday-sync/internal/domain/user"
)

// Snapshot is the consumer-visible state. A published snapshot is never
// modified; every change produces a new one with a higher Version.
type Snapshot struct {
	Version       uint64
	Fixtures      []fixture.Fixture
	Results       []fixture.Result
	Reports       []news.Report
	Announcements []news.Announcement
	Users         []user.User
	Leagues       []league.League
	Leaders       leader.Board
	LiveEvents    liveevent.Map
	Loading       bool
	Error         string
	UpdatedAt     time.Time
}

// Collections is what one fetch orchestration produces.
type Collections struct {
	Fixtures      []fixture.Fixture
	Results       []fixture.Result
	Reports       []news.Report
	Announcements []news.Announcement
	Users         []user.User
	Leagues       []league.League
	Leaders       leader.Board
}

// Empty is the state at process start.
func Empty() Snapshot {
	return Snapshot{}.WithCollections(EmptyCollections())
}

func EmptyCollections() Collections {
	return Collections{}.Normalize()
}

// Normalize replaces every nil collection with an empty one.
func (c Collections) Normalize() Collections {
	if c.Fixtures == nil {
		c.Fixtures = []fixture.Fixture{}
	}
	if c.Results == nil {
		c.Results = []fixture.Result{}
	}
	if c.Reports == nil {
		c.Reports = []news.Report{}
	}
	if c.Announcements == nil {
		c.Announcements = []news.Announcement{}
	}
	if c.Users == nil {
		c.Users = []user.User{}
	}
	if c.Leagues == nil {
		c.Leagues = []league.League{}
	}
	if c.Leaders == nil {
		c.Leaders = leader.NewBoard()
	}
	return c
}

// WithCollections returns a copy of s carrying c. Live events and flags are
// kept.
func (s Snapshot) WithCollections(c Collections) Snapshot {
	c = c.Normalize()
	s.Fixtures = c.Fixtures
	s.Results = c.Results
	s.Reports = c.Reports
	s.Announcements = c.Announcements
	s.Users = c.Users
	s.Leagues = c.Leagues
	s.Leaders = c.Leaders
	if s.LiveEvents == nil {
		s.LiveEvents = liveevent.Map{}
	}
	return s
}

func (s Snapshot) Collections() Collections {
	return Collections{
		Fixtures:      s.Fixtures,
		Results:       s.Results,
		Reports:       s.Reports,
		Announcements: s.Announcements,
		Users:         s.Users,
		Leagues:       s.Leagues,
		Leaders:       s.Leaders,
	}
}
