package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/alert"
	"github.com/upmon/upmon/internal/checker"
	"github.com/upmon/upmon/internal/metrics"
	"github.com/upmon/upmon/internal/model"
)

// Factory builds and launches workers with the engine's shared plumbing.
// One factory serves all targets; each Start call produces one registered,
// running worker.
type Factory struct {
	logger     *zap.Logger
	registry   *Registry
	runtime    Runtime
	prober     *checker.Prober
	retrier    *checker.Retrier
	dispatcher *alert.Dispatcher
	store      ResultStore
	stats      *metrics.Stats
	alertCfg   alert.Config
}

// NewFactory wires the shared dependencies every worker needs
func NewFactory(
	logger *zap.Logger,
	registry *Registry,
	runtime Runtime,
	prober *checker.Prober,
	retrier *checker.Retrier,
	dispatcher *alert.Dispatcher,
	store ResultStore,
	stats *metrics.Stats,
	alertCfg alert.Config,
) *Factory {
	return &Factory{
		logger:     logger,
		registry:   registry,
		runtime:    runtime,
		prober:     prober,
		retrier:    retrier,
		dispatcher: dispatcher,
		store:      store,
		stats:      stats,
		alertCfg:   alertCfg,
	}
}

// Start creates a fresh worker for the target, registers it and launches it
// on the runtime. The checker is resolved before registration so a target
// with a broken configuration never occupies a registry slot.
func (f *Factory) Start(ctx context.Context, target *model.Target) error {
	state := alert.NewState(target.MaxFailures, f.alertCfg)
	handle := NewHandle(target, state)

	w, err := New(f.logger, handle, f.registry, f.runtime, f.prober, f.retrier, f.dispatcher, f.store, f.stats)
	if err != nil {
		return fmt.Errorf("failed to build worker for target %d: %w", target.ID, err)
	}

	if err := f.registry.Register(handle); err != nil {
		return fmt.Errorf("failed to register worker for target %d: %w", target.ID, err)
	}

	f.runtime.Spawn(func() { w.Run(ctx) })
	return nil
}
