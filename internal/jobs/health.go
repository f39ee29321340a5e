package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSetter is satisfied by *health.Server.
type StatusSetter interface {
	SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus)
}

// StartHealthWatcher pings the store once immediately and then every interval, reporting the
// outcome for each service name through setter. It stops when ctx is done.
func StartHealthWatcher(ctx context.Context, interval time.Duration, store Pinger, setter StatusSetter, logger *zap.Logger, services ...string) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := interval / 2
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}

	watcher := &healthWatcher{store: store, setter: setter, logger: logger, services: services, timeout: timeout}
	watcher.check(ctx)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				watcher.check(ctx)
			}
		}
	}()
}

type healthWatcher struct {
	store    Pinger
	setter   StatusSetter
	logger   *zap.Logger
	services []string
	timeout  time.Duration
	serving  *bool
}

func (w *healthWatcher) check(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, w.timeout)
	err := w.store.Ping(tickCtx)
	cancel()

	serving := err == nil
	if w.serving != nil && *w.serving == serving {
		return
	}
	w.serving = &serving

	status := healthpb.HealthCheckResponse_SERVING
	if serving {
		w.logger.Info("store reachable, serving")
	} else {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		w.logger.Warn("store unreachable, not serving", zap.Error(err))
	}
	for _, service := range w.services {
		w.setter.SetServingStatus(service, status)
	}
}
