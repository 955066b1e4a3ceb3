package alert

import (
	"sync"
	"time"

	"github.com/upmon/upmon/internal/model"
)

// Config holds the alerting windows shared by every target's state
type Config struct {
	// ThrottleWindow is the minimum gap between chat-bot notifications.
	// Webhook channels are never throttled.
	ThrottleWindow time.Duration

	// EscalationInterval is how long a sustained outage may go quiet
	// before a repeat error notification fires
	EscalationInterval time.Duration
}

// DefaultConfig returns the standard alerting windows
func DefaultConfig() Config {
	return Config{
		ThrottleWindow:     30 * time.Second,
		EscalationInterval: 5 * time.Minute,
	}
}

// State tracks alerting progress for one target. Each live worker owns
// exactly one State; the mutex makes the component safe in isolation and
// keeps the concurrent-increment property exact even with outside callers.
type State struct {
	mu sync.Mutex

	cfg         Config
	maxFailures int

	consecutiveFailures int
	errorSent           bool
	recoverySent        bool
	lastAlertTime       time.Time
	lastNotified        map[model.ChannelKind]time.Time
}

// NewState creates alerting state for a target. maxFailures below 1 is
// clamped so a single failure can always cross the threshold.
func NewState(maxFailures int, cfg Config) *State {
	if maxFailures < 1 {
		maxFailures = 1
	}
	if cfg.ThrottleWindow <= 0 {
		cfg.ThrottleWindow = DefaultConfig().ThrottleWindow
	}
	if cfg.EscalationInterval <= 0 {
		cfg.EscalationInterval = DefaultConfig().EscalationInterval
	}
	return &State{
		cfg:          cfg,
		maxFailures:  maxFailures,
		lastNotified: make(map[model.ChannelKind]time.Time),
	}
}

// Apply feeds one check outcome through the state machine and returns the
// transitions that should be notified, in order. At most one transition
// fires per cycle.
func (s *State) Apply(outcome model.Outcome, now time.Time) []model.Transition {
	s.mu.Lock()
	defer s.mu.Unlock()

	if outcome.Success {
		s.consecutiveFailures = 0
	} else {
		s.consecutiveFailures++
	}

	// Error transition: fires once per failure streak
	if !outcome.Success && s.consecutiveFailures >= s.maxFailures && !s.errorSent {
		s.errorSent = true
		s.recoverySent = false
		s.lastAlertTime = now
		return []model.Transition{model.TransitionError}
	}

	// Recovery transition: fires once, and only after an error was sent
	if outcome.Success && s.errorSent && !s.recoverySent {
		s.errorSent = false
		s.recoverySent = true
		return []model.Transition{model.TransitionRecovery}
	}

	// Escalation: the outage persists and the last alert has gone stale
	if !outcome.Success && s.errorSent && now.Sub(s.lastAlertTime) >= s.cfg.EscalationInterval {
		s.lastAlertTime = now
		return []model.Transition{model.TransitionEscalation}
	}

	return nil
}

// ShouldNotify reports whether a notification may go to the given channel
// kind right now. Chat-bot channels are throttled by the configured window
// because the remote bot API rate-limits; webhooks fire on every transition.
func (s *State) ShouldNotify(kind model.ChannelKind, now time.Time) bool {
	if kind != model.ChannelChatBot {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastNotified[kind]
	return !ok || now.Sub(last) >= s.cfg.ThrottleWindow
}

// MarkNotified records a delivery to the given channel kind
func (s *State) MarkNotified(kind model.ChannelKind, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastNotified[kind] = now
}

// ConsecutiveFailures returns the current failure streak length
func (s *State) ConsecutiveFailures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveFailures
}
