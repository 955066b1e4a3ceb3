package worker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/alert"
	"github.com/upmon/upmon/internal/checker"
	"github.com/upmon/upmon/internal/metrics"
	"github.com/upmon/upmon/internal/model"
)

type fakeStore struct {
	mu      sync.Mutex
	updates int
	records int
}

func (f *fakeStore) UpdateCheckResult(ctx context.Context, targetID int64, success bool, checkedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	return nil
}

func (f *fakeStore) RecordCheck(ctx context.Context, targetID int64, checkType model.CheckType, outcome model.Outcome, checkedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records++
	return nil
}

func (f *fakeStore) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates, f.records
}

type noChannels struct{}

func (noChannels) ChannelsFor(ctx context.Context, targetID int64) ([]*model.Channel, error) {
	return nil, nil
}

func testFactory(t *testing.T, store ResultStore, stats *metrics.Stats) (*Factory, *Registry, Runtime) {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	registry := NewRegistry()
	runtime := NewThreadRuntime()
	prober := checker.NewProber(logger, 2*time.Second, 7)
	retrier := checker.NewRetrier(logger, 1, time.Millisecond)
	dispatcher := alert.NewDispatcher(logger, noChannels{}, nil, nil, time.Second)

	factory := NewFactory(logger, registry, runtime, prober, retrier, dispatcher, store, stats, alert.DefaultConfig())
	return factory, registry, runtime
}

func TestWorker_ChecksAndStopsWithinInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := &fakeStore{}
	stats := metrics.NewStats()
	factory, registry, _ := testFactory(t, store, stats)

	target := &model.Target{
		ID:              1,
		Name:            "web",
		Address:         srv.URL,
		CheckType:       model.CheckHTTP,
		IntervalSeconds: 3600,
		MaxFailures:     1,
	}
	require.NoError(t, factory.Start(context.Background(), target))

	handle, ok := registry.Get(1)
	require.True(t, ok)

	// The first check runs immediately; give it a moment, then stop. The
	// hour-long interval wait must not delay the exit.
	time.Sleep(500 * time.Millisecond)
	handle.SignalStop()

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop within the interval wait")
	}

	updates, records := store.counts()
	require.GreaterOrEqual(t, updates, 1)
	require.Equal(t, updates, records)

	total, successful, _ := stats.Totals()
	require.GreaterOrEqual(t, total, int64(1))
	require.Equal(t, total, successful)

	// Worker must have deregistered itself
	_, ok = registry.Get(1)
	require.False(t, ok)
}

func TestFactory_RejectsUnknownCheckType(t *testing.T) {
	store := &fakeStore{}
	factory, registry, _ := testFactory(t, store, metrics.NewStats())

	target := &model.Target{ID: 2, Name: "bad", CheckType: "smoke_signal", MaxFailures: 1}
	err := factory.Start(context.Background(), target)
	require.Error(t, err)

	// A broken target must not occupy a registry slot
	require.Equal(t, 0, registry.Len())
}

func TestWorker_PausedTargetSkipsProbe(t *testing.T) {
	store := &fakeStore{}
	factory, registry, _ := testFactory(t, store, metrics.NewStats())

	until := time.Now().Add(time.Hour)
	target := &model.Target{
		ID:              3,
		Name:            "paused",
		Address:         "http://127.0.0.1:1",
		CheckType:       model.CheckHTTP,
		IntervalSeconds: 3600,
		MaxFailures:     1,
		PausedUntil:     &until,
	}
	require.NoError(t, factory.Start(context.Background(), target))

	handle, ok := registry.Get(3)
	require.True(t, ok)

	time.Sleep(300 * time.Millisecond)
	handle.SignalStop()

	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	updates, records := store.counts()
	require.Equal(t, 0, updates)
	require.Equal(t, 0, records)
}
