package reconciler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/model"
	"github.com/upmon/upmon/internal/worker"
)

// DefaultInterval is how often the reconciler polls the store when no
// interval is configured
const DefaultInterval = 5 * time.Second

// TargetSource lists the targets that should currently be monitored
type TargetSource interface {
	ListEnabled(ctx context.Context) ([]*model.Target, error)
}

// Starter launches a worker for a target
type Starter interface {
	Start(ctx context.Context, target *model.Target) error
}

// Reconciler periodically diffs the store's enabled targets against the
// registry's live workers and converges: missing workers are started,
// orphaned workers are stopped, and a worker whose target configuration
// changed is stopped so a fresh one starts on the next pass.
//
// All store I/O happens outside the registry lock; a pass touches only the
// targets that changed.
type Reconciler struct {
	logger   *zap.Logger
	targets  TargetSource
	registry *worker.Registry
	starter  Starter
	interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a reconciler polling at the given interval
func New(logger *zap.Logger, targets TargetSource, registry *worker.Registry, starter Starter, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		logger:   logger.Named("reconciler"),
		targets:  targets,
		registry: registry,
		starter:  starter,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs an immediate pass and then launches the polling loop
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("reconciler started", zap.Duration("interval", r.interval))

	if err := r.reconcile(ctx); err != nil {
		r.logger.Error("initial reconcile failed", zap.Error(err))
	}

	go r.loop(ctx)
}

// Stop halts the polling loop and waits for the in-flight pass to finish.
// Workers keep running; stopping them is the engine's shutdown path.
func (r *Reconciler) Stop() {
	close(r.stopCh)
	<-r.doneCh
	r.logger.Info("reconciler stopped")
}

func (r *Reconciler) loop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.reconcile(ctx); err != nil {
				r.logger.Error("reconcile pass failed", zap.Error(err))
			}
		}
	}
}

// reconcile performs one convergence pass
func (r *Reconciler) reconcile(ctx context.Context) error {
	desired, err := r.targets.ListEnabled(ctx)
	if err != nil {
		return err
	}

	desiredByID := make(map[int64]*model.Target, len(desired))
	for _, t := range desired {
		desiredByID[t.ID] = t
	}

	live := r.registry.Snapshot()

	// Stop workers whose target vanished or was disabled, and workers whose
	// configuration drifted. A restarted target comes back on the next pass,
	// once the old worker has deregistered.
	for id, handle := range live {
		t, wanted := desiredByID[id]
		if !wanted {
			r.logger.Info("stopping worker, target disabled or removed",
				zap.Int64("target_id", id),
				zap.String("target", handle.Target.Name))
			handle.SignalStop()
			continue
		}
		if !handle.Target.ConfigEquals(t) {
			r.logger.Info("stopping worker, target configuration changed",
				zap.Int64("target_id", id),
				zap.String("target", t.Name))
			handle.SignalStop()
		}
	}

	for _, t := range desired {
		if _, running := live[t.ID]; running {
			continue
		}
		if err := r.starter.Start(ctx, t); err != nil {
			// A registry conflict here just means the old worker has not
			// finished deregistering yet; the next pass picks it up.
			r.logger.Warn("failed to start worker",
				zap.Int64("target_id", t.ID),
				zap.String("target", t.Name),
				zap.Error(err))
		}
	}

	return nil
}
