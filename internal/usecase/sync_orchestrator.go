package usecase

import (
	"context"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/matchday-sync/internal/domain/snapshot"
	"github.com/riskibarqy/matchday-sync/internal/platform/logging"
	"github.com/sourcegraph/conc"
)

const defaultLoadErrorMessage = "Unable to load football data. Pull to refresh to try again."

// SnapshotLoader produces a freshly fetched snapshot. Live events are not part
// of a load.
type SnapshotLoader interface {
	Load(ctx context.Context) snapshot.Snapshot
}

// SyncOrchestrator fetches every collection concurrently and assembles them
// into one snapshot.
type SyncOrchestrator struct {
	provider FeedProvider
	logger   *logging.Logger
	now      func() time.Time
}

type collectionFetch struct {
	name string
	run  func(ctx context.Context) error
}

func NewSyncOrchestrator(provider FeedProvider, logger *logging.Logger) *SyncOrchestrator {
	if logger == nil {
		logger = logging.Default()
	}
	return &SyncOrchestrator{
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
}

// Load waits for every fetch to settle. A failed collection is replaced by an
// empty one and does not fail the load. Error is set only when the
// orchestration itself fails (a panic in a fetch) or when every collection
// failed. The returned snapshot never has Loading set.
func (o *SyncOrchestrator) Load(ctx context.Context) snapshot.Snapshot {
	ctx, span := startUsecaseSpan(ctx, "usecase.SyncOrchestrator.Load")
	defer span.End()

	if o.provider == nil {
		return o.failed(ctx, crerr.WithHint(
			crerr.Wrap(ErrDependencyUnavailable, "feed provider is not configured"),
			defaultLoadErrorMessage,
		))
	}

	var collections snapshot.Collections
	fetches := []collectionFetch{
		{name: "fixtures", run: fetchInto(&collections.Fixtures, o.provider.FetchFixtures)},
		{name: "results", run: fetchInto(&collections.Results, o.provider.FetchResults)},
		{name: "reports", run: fetchInto(&collections.Reports, o.provider.FetchReports)},
		{name: "announcements", run: fetchInto(&collections.Announcements, o.provider.FetchAnnouncements)},
		{name: "users", run: fetchInto(&collections.Users, o.provider.FetchUsers)},
		{name: "leagues", run: fetchInto(&collections.Leagues, o.provider.FetchLeagues)},
		{name: "leaders", run: fetchInto(&collections.Leaders, o.provider.FetchLeaders)},
	}

	errs := make([]error, len(fetches))
	var wg conc.WaitGroup
	for i, fetch := range fetches {
		wg.Go(func() {
			errs[i] = fetch.run(ctx)
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		return o.failed(ctx, recovered.AsError())
	}

	var firstErr error
	failedCount := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failedCount++
		if firstErr == nil {
			firstErr = err
		}
		o.logger.WarnContext(ctx, "collection fetch failed, using empty collection",
			"collection", fetches[i].name,
			"error", err,
		)
	}

	out := snapshot.Snapshot{}.WithCollections(collections)
	out.UpdatedAt = o.now().UTC()
	if failedCount == len(fetches) {
		out.Error = userFacingMessage(firstErr)
		o.logger.ErrorContext(ctx, "every collection fetch failed", "error", firstErr)
	}
	return out
}

func (o *SyncOrchestrator) failed(ctx context.Context, err error) snapshot.Snapshot {
	o.logger.ErrorContext(ctx, "sync orchestration failed", "error", err)

	out := snapshot.Empty()
	out.Error = userFacingMessage(err)
	out.UpdatedAt = o.now().UTC()
	return out
}

// fetchInto stores the fetched value in dst only on success, so a failed
// fetch leaves dst nil and Normalize turns it into an empty collection.
func fetchInto[T any](dst *T, fetch func(context.Context) (T, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		value, err := fetch(ctx)
		if err != nil {
			return err
		}
		*dst = value
		return nil
	}
}

// userFacingMessage prefers a hint attached by the transport over the raw
// error text.
func userFacingMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, hint := range crerr.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	if message := strings.TrimSpace(err.Error()); message != "" {
		return message
	}
	return defaultLoadErrorMessage
}
