package alert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/model"
)

// Notification is one alert transition for one target, handed to channel
// senders for delivery
type Notification struct {
	Target              *model.Target
	Transition          model.Transition
	Outcome             model.Outcome
	ConsecutiveFailures int
	Timestamp           time.Time
}

// Sender delivers a notification to a single channel
type Sender interface {
	Send(ctx context.Context, channel *model.Channel, n Notification) error
}

// ChannelSource resolves the channels linked to a target
type ChannelSource interface {
	ChannelsFor(ctx context.Context, targetID int64) ([]*model.Channel, error)
}

// Dispatcher fans one notification out to every channel linked to the
// target. Delivery is best-effort: a channel failure is logged and never
// blocks the remaining channels or escalates to the worker loop.
type Dispatcher struct {
	logger   *zap.Logger
	channels ChannelSource
	senders  map[model.ChannelKind]Sender
	events   *Events
	timeout  time.Duration
}

// NewDispatcher creates a dispatcher. events may be nil when no event feed
// is configured.
func NewDispatcher(logger *zap.Logger, channels ChannelSource, senders map[model.ChannelKind]Sender, events *Events, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		logger:   logger.Named("dispatcher"),
		channels: channels,
		senders:  senders,
		events:   events,
		timeout:  timeout,
	}
}

// Dispatch sends the notification to each of the target's active channels,
// honoring the per-channel throttle held in state
func (d *Dispatcher) Dispatch(ctx context.Context, state *State, n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	if d.events != nil {
		if err := d.events.Publish(ctx, n); err != nil {
			d.logger.Warn("failed to publish alert event",
				zap.Int64("target_id", n.Target.ID),
				zap.Error(err))
		}
	}

	channels, err := d.channels.ChannelsFor(ctx, n.Target.ID)
	if err != nil {
		d.logger.Error("failed to resolve channels",
			zap.Int64("target_id", n.Target.ID),
			zap.Error(err))
		return
	}

	for _, ch := range channels {
		if !ch.Active {
			continue
		}

		sender, ok := d.senders[ch.Kind]
		if !ok {
			d.logger.Warn("no sender for channel kind",
				zap.String("kind", string(ch.Kind)),
				zap.Int64("channel_id", ch.ID))
			continue
		}

		if !state.ShouldNotify(ch.Kind, n.Timestamp) {
			d.logger.Debug("notification throttled",
				zap.Int64("target_id", n.Target.ID),
				zap.String("kind", string(ch.Kind)))
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := sender.Send(sendCtx, ch, n)
		cancel()

		if err != nil {
			d.logger.Error("failed to send notification",
				zap.Int64("target_id", n.Target.ID),
				zap.Int64("channel_id", ch.ID),
				zap.String("kind", string(ch.Kind)),
				zap.Error(err))
			continue
		}

		state.MarkNotified(ch.Kind, n.Timestamp)
		d.logger.Info("notification sent",
			zap.Int64("target_id", n.Target.ID),
			zap.String("target", n.Target.Name),
			zap.String("transition", string(n.Transition)),
			zap.String("kind", string(ch.Kind)))
	}
}

// formatText renders a plain-text message for chat-style channels
func formatText(n Notification) string {
	switch n.Transition {
	case model.TransitionRecovery:
		msg := fmt.Sprintf("✅ %s (%s) is back online", n.Target.Name, n.Target.Address)
		if n.Outcome.Latency > 0 {
			msg += fmt.Sprintf(" (response time: %dms)", n.Outcome.Latency.Milliseconds())
		}
		return msg
	case model.TransitionEscalation:
		return fmt.Sprintf("🔁 %s (%s) is still down: %s (consecutive failures: %d)",
			n.Target.Name, n.Target.Address, n.Outcome.Message, n.ConsecutiveFailures)
	default:
		msg := fmt.Sprintf("❌ %s (%s) is down: %s (consecutive failures: %d)",
			n.Target.Name, n.Target.Address, n.Outcome.Message, n.ConsecutiveFailures)
		if tls := n.Outcome.Detail.TLS; tls != nil {
			msg += fmt.Sprintf("\ncertificate %s: %d days until expiry (expires %s)",
				tls.State, tls.DaysUntilExpiry, tls.ExpiresAt.Format("2006-01-02"))
		}
		return msg
	}
}
