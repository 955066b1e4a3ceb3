package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/alert"
	"github.com/upmon/upmon/internal/checker"
	"github.com/upmon/upmon/internal/metrics"
	"github.com/upmon/upmon/internal/model"
)

// ResultStore is the slice of the target store a worker writes to: the
// rolling counters on the target row and the per-check history record
type ResultStore interface {
	UpdateCheckResult(ctx context.Context, targetID int64, success bool, checkedAt time.Time) error
	RecordCheck(ctx context.Context, targetID int64, checkType model.CheckType, outcome model.Outcome, checkedAt time.Time) error
}

// Worker drives the check loop for one target: probe with retry, feed the
// alert state machine, dispatch any notifications, persist counters.
// Lifecycle: starting (register) -> running -> stopping -> stopped
// (deregister). An in-flight check always finishes before stop is honored;
// the interval wait is the interruption point.
type Worker struct {
	logger     *zap.Logger
	handle     *Handle
	registry   *Registry
	runtime    Runtime
	check      checker.Checker
	retrier    *checker.Retrier
	dispatcher *alert.Dispatcher
	store      ResultStore
	stats      *metrics.Stats
}

// New assembles a worker for the handle's target. The checker is resolved
// once here: configuration changes restart the worker rather than mutating
// it in place.
func New(
	logger *zap.Logger,
	handle *Handle,
	registry *Registry,
	runtime Runtime,
	prober *checker.Prober,
	retrier *checker.Retrier,
	dispatcher *alert.Dispatcher,
	store ResultStore,
	stats *metrics.Stats,
) (*Worker, error) {
	check, err := prober.ForTarget(handle.Target)
	if err != nil {
		return nil, err
	}

	return &Worker{
		logger: logger.Named("worker").With(
			zap.Int64("target_id", handle.Target.ID),
			zap.String("target", handle.Target.Name)),
		handle:     handle,
		registry:   registry,
		runtime:    runtime,
		check:      check,
		retrier:    retrier,
		dispatcher: dispatcher,
		store:      store,
		stats:      stats,
	}, nil
}

// Run executes the worker loop until stop or ctx cancellation. Meant to be
// launched via the runtime's Spawn; deregisters and closes the done channel
// on the way out.
func (w *Worker) Run(ctx context.Context) {
	target := w.handle.Target

	defer func() {
		w.registry.Deregister(w.handle)
		close(w.handle.done)
		w.logger.Info("worker stopped")
	}()

	w.logger.Info("worker started",
		zap.String("check_type", string(target.CheckType)),
		zap.Duration("interval", target.Interval()))

	for {
		select {
		case <-w.handle.Stopping():
			return
		case <-ctx.Done():
			return
		default:
		}

		now := time.Now()
		if target.Paused(now) {
			w.logger.Debug("target paused, skipping check",
				zap.Timep("paused_until", target.PausedUntil))
		} else {
			w.runCheck(ctx, now)
		}

		if !w.runtime.Wait(ctx, target.Interval(), w.handle.Stopping()) {
			return
		}
	}
}

func (w *Worker) runCheck(ctx context.Context, now time.Time) {
	release, ok := w.runtime.Acquire(ctx)
	if !ok {
		return
	}
	defer release()

	target := w.handle.Target
	outcome := w.retrier.Do(ctx, w.check, target.Address)

	w.stats.RecordCheck(outcome.Success)

	if outcome.Success {
		w.logger.Debug("check succeeded",
			zap.Duration("latency", outcome.Latency),
			zap.String("message", outcome.Message))
	} else {
		w.logger.Warn("check failed",
			zap.String("failure_kind", string(outcome.Kind)),
			zap.String("message", outcome.Message))
	}

	for _, transition := range w.handle.State.Apply(outcome, now) {
		w.dispatcher.Dispatch(ctx, w.handle.State, alert.Notification{
			Target:              target,
			Transition:          transition,
			Outcome:             outcome,
			ConsecutiveFailures: w.handle.State.ConsecutiveFailures(),
			Timestamp:           now,
		})
	}

	// Persistence is best-effort: the in-memory alert state is authoritative
	// and a store outage must not stall the loop.
	if err := w.store.UpdateCheckResult(ctx, target.ID, outcome.Success, now); err != nil {
		w.logger.Error("failed to persist check counters", zap.Error(err))
	}
	if err := w.store.RecordCheck(ctx, target.ID, target.CheckType, outcome, now); err != nil {
		w.logger.Error("failed to record check history", zap.Error(err))
	}
}
