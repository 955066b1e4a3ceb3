package checker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/model"
)

// Retrier wraps a checker with bounded attempts and a fixed inter-attempt
// delay. All check types retry identically.
type Retrier struct {
	logger   *zap.Logger
	attempts int
	backoff  time.Duration
}

// NewRetrier creates a retrier. Non-positive arguments fall back to the
// defaults of 3 attempts spaced 3 seconds apart.
func NewRetrier(logger *zap.Logger, attempts int, backoff time.Duration) *Retrier {
	if attempts <= 0 {
		attempts = 3
	}
	if backoff <= 0 {
		backoff = 3 * time.Second
	}
	return &Retrier{
		logger:   logger.Named("retry"),
		attempts: attempts,
		backoff:  backoff,
	}
}

// Do runs the checker up to the attempt limit, waiting the backoff between
// failing attempts, and returns the final outcome. The wait aborts promptly
// when ctx is cancelled. Configuration errors return immediately: retrying
// a malformed address cannot fix it.
func (r *Retrier) Do(ctx context.Context, c Checker, address string) model.Outcome {
	var outcome model.Outcome

	for attempt := 1; attempt <= r.attempts; attempt++ {
		outcome = c.Check(ctx, address)
		if outcome.Success || outcome.ConfigError() {
			return outcome
		}

		if attempt == r.attempts {
			break
		}

		r.logger.Debug("check failed, retrying",
			zap.String("address", address),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.attempts),
			zap.String("message", outcome.Message))

		timer := time.NewTimer(r.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return outcome
		case <-timer.C:
		}
	}

	return outcome
}
