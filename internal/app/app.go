package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/riskibarqy/matchday-sync/external/feedapi"
	"github.com/riskibarqy/matchday-sync/external/livemirror"
	"github.com/riskibarqy/matchday-sync/external/pushchannel"
	"github.com/riskibarqy/matchday-sync/internal/config"
	"github.com/riskibarqy/matchday-sync/internal/interfaces/httpapi"
	"github.com/riskibarqy/matchday-sync/internal/platform/cache"
	"github.com/riskibarqy/matchday-sync/internal/platform/logging"
	"github.com/riskibarqy/matchday-sync/internal/usecase"
	"github.com/sourcegraph/conc"
)

// App owns the sync store, the optional push connection, the optional Redis
// live mirror and the HTTP server.
type App struct {
	Server *http.Server

	store  *usecase.Store
	push   *pushchannel.Client
	mirror *livemirror.Mirror
	logger *logging.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	workers conc.WaitGroup

	shutdownOnce sync.Once
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	feedClient := feedapi.NewClient(feedapi.ClientConfig{
		BaseURL:        cfg.FeedBaseURL,
		Token:          cfg.FeedToken,
		Timeout:        cfg.FeedTimeout,
		MaxRetries:     cfg.FeedMaxRetries,
		RetryBackoff:   cfg.FeedRetryBackoff,
		Logger:         logger,
		CircuitBreaker: cfg.FeedCircuitBreaker(),
	})

	var push *pushchannel.Client
	var channel usecase.PushChannel
	if cfg.PushEnabled {
		push = pushchannel.New(pushchannel.Config{
			URL:          cfg.PushURL,
			Token:        cfg.PushToken,
			ReconnectMin: cfg.PushReconnectMin,
			ReconnectMax: cfg.PushReconnectMax,
			PingInterval: cfg.PushPingInterval,
			Logger:       logger,
		})
		channel = push
	}

	orchestrator := usecase.NewSyncOrchestrator(feedClient, logger)
	store, err := usecase.NewStore(orchestrator, channel, logger, usecase.StoreConfig{
		RefreshWorkers:    cfg.StoreRefreshWorkers,
		DiscardStaleLoads: cfg.StoreDiscardStaleLoads,
	})
	if err != nil {
		return nil, fmt.Errorf("build store: %w", err)
	}

	var mirror *livemirror.Mirror
	if cfg.RedisMirrorEnabled {
		mirror, err = livemirror.New(livemirror.Config{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
			TTL:       cfg.RedisTTL,
			Logger:    logger,
		})
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("build live mirror: %w", err)
		}
	}

	memo := cache.NewDisabled()
	if cfg.StatsCacheEnabled {
		memo = cache.NewStore(cfg.StatsCacheTTL)
	}
	statsSvc := usecase.NewStatsService(memo, logger)

	handler := httpapi.NewHandler(store, statsSvc, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins)

	baseCtx, cancel := context.WithCancel(context.Background())
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		// Open snapshot streams end when the app shuts down.
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	return &App{
		Server:  server,
		store:   store,
		push:    push,
		mirror:  mirror,
		logger:  logger,
		baseCtx: baseCtx,
		cancel:  cancel,
	}, nil
}

func (a *App) Store() *usecase.Store {
	return a.store
}

// Start connects the push channel, starts the live mirror and runs the
// initial load in the background. The HTTP server is started by the caller.
func (a *App) Start() {
	if a.mirror != nil {
		a.workers.Go(func() {
			if err := a.mirror.Run(a.baseCtx, a.store); err != nil {
				a.logger.Error("live mirror stopped", "error", err)
			}
		})
	}
	if a.push != nil {
		a.workers.Go(func() {
			if err := a.push.Run(a.baseCtx); err != nil {
				a.logger.Error("push channel stopped", "error", err)
			}
		})
	}

	a.workers.Go(func() {
		if err := a.store.Start(a.baseCtx); err != nil && !errors.Is(err, usecase.ErrStoreClosed) {
			a.logger.Error("initial load failed", "error", err)
		}
	})
}

// Shutdown stops accepting requests, closes the store and waits for the
// background workers. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.shutdownOnce.Do(func() {
		a.cancel()
		err = a.Server.Shutdown(ctx)
		a.store.Close()
		a.workers.Wait()
		if a.mirror != nil {
			if closeErr := a.mirror.Close(); closeErr != nil {
				a.logger.Warn("close live mirror", "error", closeErr)
			}
		}
	})
	return err
}
