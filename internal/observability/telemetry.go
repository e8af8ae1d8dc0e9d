package observability

import (
	"context"
	"fmt"
	"strings"
	"sync"

	crerr "github.com/cockroachdb/errors"
	"github.com/grafana/pyroscope-go"
	"github.com/riskibarqy/matchday-sync/internal/config"
	"github.com/riskibarqy/matchday-sync/internal/platform/logging"
	"github.com/uptrace/uptrace-go/uptrace"
)

// Telemetry holds the tracing exporter and the continuous profiler started
// for this process. Either may be off; Shutdown handles both.
type Telemetry struct {
	tracing  bool
	profiler *pyroscope.Profiler
	logger   *logging.Logger
	once     sync.Once
}

// Setup starts tracing and profiling as configured. A profiler that fails to
// start is an error; tracing without a DSN is skipped.
func Setup(cfg config.Config, logger *logging.Logger) (*Telemetry, error) {
	if logger == nil {
		logger = logging.Default()
	}
	t := &Telemetry{logger: logger}

	t.tracing = startTracing(cfg, logger)

	profiler, err := startProfiling(cfg, logger)
	if err != nil {
		if t.tracing {
			_ = uptrace.Shutdown(context.Background())
		}
		return nil, crerr.Wrap(err, "start pyroscope")
	}
	t.profiler = profiler

	return t, nil
}

func (t *Telemetry) TracingEnabled() bool {
	return t != nil && t.tracing
}

func (t *Telemetry) ProfilingEnabled() bool {
	return t != nil && t.profiler != nil
}

// Shutdown flushes spans and stops the profiler. Later calls do nothing.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}

	var errs error
	t.once.Do(func() {
		if t.profiler != nil {
			if err := t.profiler.Stop(); err != nil {
				errs = crerr.CombineErrors(errs, crerr.Wrap(err, "stop pyroscope"))
			}
		}
		if t.tracing {
			if err := uptrace.Shutdown(ctx); err != nil {
				errs = crerr.CombineErrors(errs, crerr.Wrap(err, "shutdown uptrace"))
			}
		}
		t.logger.Info("telemetry stopped")
	})
	return errs
}

func startTracing(cfg config.Config, logger *logging.Logger) bool {
	if !cfg.UptraceEnabled {
		logger.Info("uptrace disabled", "reason", "UPTRACE_ENABLED=false")
		return false
	}
	if strings.TrimSpace(cfg.UptraceDSN) == "" {
		logger.Warn("uptrace disabled", "reason", "UPTRACE_DSN empty")
		return false
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(cfg.ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.AppEnv),
	)
	logger.Info("uptrace enabled",
		"service_name", cfg.ServiceName,
		"service_version", cfg.ServiceVersion,
		"environment", cfg.AppEnv,
	)
	return true
}

func startProfiling(cfg config.Config, logger *logging.Logger) (*pyroscope.Profiler, error) {
	if !cfg.PyroscopeEnabled {
		logger.Info("pyroscope disabled", "reason", "PYROSCOPE_ENABLED=false")
		return nil, nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.PyroscopeAppName,
		ServerAddress:     cfg.PyroscopeServerAddress,
		AuthToken:         cfg.PyroscopeAuthToken,
		BasicAuthUser:     cfg.PyroscopeBasicAuthUser,
		BasicAuthPassword: cfg.PyroscopeBasicAuthPassword,
		UploadRate:        cfg.PyroscopeUploadRate,
		Logger:            profilerLogger{logger: logger.Named("pyroscope")},
		Tags:              profileTags(cfg),
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileMutexCount,
			pyroscope.ProfileMutexDuration,
		},
	})
	if err != nil {
		return nil, err
	}

	logger.Info("pyroscope enabled",
		"server_address", cfg.PyroscopeServerAddress,
		"application", cfg.PyroscopeAppName,
	)
	return profiler, nil
}

// profileTags labels profiles with the deployment and the push mode.
func profileTags(cfg config.Config) map[string]string {
	push := "off"
	if cfg.PushEnabled {
		push = "on"
	}
	return map[string]string{
		"env":     cfg.AppEnv,
		"service": cfg.ServiceName,
		"version": cfg.ServiceVersion,
		"push":    push,
	}
}

type profilerLogger struct {
	logger *logging.Logger
}

func (l profilerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l profilerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l profilerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}
