package alert

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/upmon/upmon/internal/model"
)

var (
	failed = model.Failure(model.FailureTransient, "timeout")
	passed = model.Outcome{Success: true, Message: "ok"}
)

func TestState_ErrorFiresOncePerStreak(t *testing.T) {
	s := NewState(3, DefaultConfig())
	now := time.Now()

	// Below the threshold nothing fires
	require.Empty(t, s.Apply(failed, now))
	require.Empty(t, s.Apply(failed, now.Add(time.Second)))

	// Third consecutive failure crosses it
	transitions := s.Apply(failed, now.Add(2*time.Second))
	require.Equal(t, []model.Transition{model.TransitionError}, transitions)

	// Continuing failures stay quiet until escalation time
	require.Empty(t, s.Apply(failed, now.Add(3*time.Second)))
	require.Empty(t, s.Apply(failed, now.Add(4*time.Second)))
}

func TestState_SuccessResetsStreak(t *testing.T) {
	s := NewState(3, DefaultConfig())
	now := time.Now()

	require.Empty(t, s.Apply(failed, now))
	require.Empty(t, s.Apply(failed, now))
	require.Empty(t, s.Apply(passed, now))
	require.Zero(t, s.ConsecutiveFailures())

	// The streak starts over, so two more failures still sit below threshold
	require.Empty(t, s.Apply(failed, now))
	require.Empty(t, s.Apply(failed, now))
	transitions := s.Apply(failed, now)
	require.Equal(t, []model.Transition{model.TransitionError}, transitions)
}

func TestState_RecoveryOnlyAfterError(t *testing.T) {
	s := NewState(2, DefaultConfig())
	now := time.Now()

	// A success with no prior error alert is not a recovery
	require.Empty(t, s.Apply(passed, now))

	require.Empty(t, s.Apply(failed, now))
	require.Equal(t, []model.Transition{model.TransitionError}, s.Apply(failed, now))

	// First success after an error is the recovery; later ones are quiet
	require.Equal(t, []model.Transition{model.TransitionRecovery}, s.Apply(passed, now))
	require.Empty(t, s.Apply(passed, now))
}

func TestState_ReAlertsAfterRecovery(t *testing.T) {
	s := NewState(1, DefaultConfig())
	now := time.Now()

	require.Equal(t, []model.Transition{model.TransitionError}, s.Apply(failed, now))
	require.Equal(t, []model.Transition{model.TransitionRecovery}, s.Apply(passed, now))

	// A fresh outage after recovery alerts again
	require.Equal(t, []model.Transition{model.TransitionError}, s.Apply(failed, now))
}

func TestState_Escalation(t *testing.T) {
	cfg := Config{ThrottleWindow: 30 * time.Second, EscalationInterval: 5 * time.Minute}
	s := NewState(1, cfg)
	now := time.Now()

	require.Equal(t, []model.Transition{model.TransitionError}, s.Apply(failed, now))

	// Still inside the escalation interval
	require.Empty(t, s.Apply(failed, now.Add(4*time.Minute)))

	// Past it, the outage re-alerts and the clock resets
	require.Equal(t, []model.Transition{model.TransitionEscalation}, s.Apply(failed, now.Add(5*time.Minute)))
	require.Empty(t, s.Apply(failed, now.Add(6*time.Minute)))
	require.Equal(t, []model.Transition{model.TransitionEscalation}, s.Apply(failed, now.Add(10*time.Minute)))
}

func TestState_ChatBotThrottle(t *testing.T) {
	cfg := Config{ThrottleWindow: 30 * time.Second, EscalationInterval: 5 * time.Minute}
	s := NewState(1, cfg)
	now := time.Now()

	require.True(t, s.ShouldNotify(model.ChannelChatBot, now))
	s.MarkNotified(model.ChannelChatBot, now)

	require.False(t, s.ShouldNotify(model.ChannelChatBot, now.Add(10*time.Second)))
	require.True(t, s.ShouldNotify(model.ChannelChatBot, now.Add(30*time.Second)))

	// Webhooks are never throttled
	s.MarkNotified(model.ChannelWebhook, now)
	require.True(t, s.ShouldNotify(model.ChannelWebhook, now))
}

func TestState_ConcurrentApply(t *testing.T) {
	s := NewState(1000000, DefaultConfig())
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Apply(failed, now)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 500, s.ConsecutiveFailures())
}
