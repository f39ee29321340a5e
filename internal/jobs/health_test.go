package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type fakePinger struct {
	mu  sync.Mutex
	err error
}

func (p *fakePinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *fakePinger) set(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

type recordingSetter struct {
	mu       sync.Mutex
	statuses map[string][]healthpb.HealthCheckResponse_ServingStatus
}

func (r *recordingSetter) SetServingStatus(service string, status healthpb.HealthCheckResponse_ServingStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.statuses == nil {
		r.statuses = map[string][]healthpb.HealthCheckResponse_ServingStatus{}
	}
	r.statuses[service] = append(r.statuses[service], status)
}

func (r *recordingSetter) history(service string) []healthpb.HealthCheckResponse_ServingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]healthpb.HealthCheckResponse_ServingStatus(nil), r.statuses[service]...)
}

func TestHealthWatcherReportsOnlyChanges(t *testing.T) {
	pinger := &fakePinger{}
	setter := &recordingSetter{}
	w := &healthWatcher{store: pinger, setter: setter, logger: zap.NewNop(), services: []string{"", "svc"}, timeout: time.Second}
	ctx := context.Background()

	w.check(ctx)
	w.check(ctx)
	pinger.set(errors.New("down"))
	w.check(ctx)
	pinger.set(nil)
	w.check(ctx)

	want := []healthpb.HealthCheckResponse_ServingStatus{
		healthpb.HealthCheckResponse_SERVING,
		healthpb.HealthCheckResponse_NOT_SERVING,
		healthpb.HealthCheckResponse_SERVING,
	}
	assert.Equal(t, want, setter.history("svc"))
	assert.Equal(t, want, setter.history(""))
}

func TestStartHealthWatcherChecksImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setter := &recordingSetter{}

	StartHealthWatcher(ctx, time.Hour, &fakePinger{err: errors.New("down")}, setter, nil, "svc")

	history := setter.history("svc")
	require.Len(t, history, 1)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, history[0])
}
