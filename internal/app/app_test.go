package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/riskibarqy/matchday-sync/internal/config"
	"github.com/riskibarqy/matchday-sync/internal/platform/logging"
)

func testConfig(feedURL string) config.Config {
	return config.Config{
		HTTPAddr:                  "127.0.0.1:0",
		ReadTimeout:               time.Second,
		FeedBaseURL:               feedURL,
		FeedTimeout:               time.Second,
		FeedRetryBackoff:          time.Millisecond,
		FeedCircuitFailureCount:   5,
		FeedCircuitOpenTimeout:    time.Second,
		FeedCircuitHalfOpenMaxReq: 1,
		StoreRefreshWorkers:       1,
		StatsCacheEnabled:         true,
		StatsCacheTTL:             time.Minute,
	}
}

func TestNew_RequiresAddr(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:1")
	cfg.HTTPAddr = ""
	if _, err := New(cfg, logging.NewNop()); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}

func TestApp_StartLoadsFromFeed(t *testing.T) {
	t.Parallel()

	feed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/fixtures":
			_, _ = w.Write([]byte(`{"data":{"fixtures":[{"id":"42","home_team":"Arsenal","away_team":"Chelsea","status":"SCHEDULED"}]}}`))
		default:
			_, _ = w.Write([]byte(`{"data":{}}`))
		}
	}))
	t.Cleanup(feed.Close)

	application, err := New(testConfig(feed.URL), logging.NewNop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	application.Start()

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := application.Store().Snapshot()
		if !snap.Loading && len(snap.Fixtures) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected fixtures to load, got %+v", snap)
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := application.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown: %v", err)
	}
}
