package usecase

import (
	"context"

	"github.com/riskibarqy/matchday-sync/internal/domain/fixture"
	"github.com/riskibarqy/matchday-sync/internal/domain/leader"
	"github.com/riskibarqy/matchday-sync/internal/domain/league"
	"github.com/riskibarqy/matchday-sync/internal/domain/news"
	"github.com/riskibarqy/matchday-sync/internal/domain/user"
)

// FeedProvider reads the resource collections of the football feed. Each call
// either returns the full collection or an error; partial data is not
// expected.
type FeedProvider interface {
	FetchFixtures(ctx context.Context) ([]fixture.Fixture, error)
	FetchResults(ctx context.Context) ([]fixture.Result, error)
	FetchReports(ctx context.Context) ([]news.Report, error)
	FetchAnnouncements(ctx context.Context) ([]news.Announcement, error)
	FetchUsers(ctx context.Context) ([]user.User, error)
	FetchLeagues(ctx context.Context) ([]league.League, error)
	FetchLeaders(ctx context.Context) (leader.Board, error)
}

// PushChannel is a named-event subscription source. Handlers receive the raw
// event data; both registration calls return a func that removes the handler.
type PushChannel interface {
	Subscribe(event string, handler func(data []byte)) (unsubscribe func())
	OnConnect(fn func()) (unsubscribe func())
}
