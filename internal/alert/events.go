package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/model"
)

const (
	alertStreamName = "ALERTS"
	alertSubjects   = "alert.*"
)

// Event is the record published to the alert event feed for every
// dispatched notification
type Event struct {
	ID         string           `json:"id"`
	TargetID   int64            `json:"target_id"`
	TargetName string           `json:"target_name"`
	Address    string           `json:"address"`
	CheckType  model.CheckType  `json:"check_type"`
	Transition model.Transition `json:"transition"`
	Message    string           `json:"message"`
	Failures   int              `json:"consecutive_failures"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Events mirrors every alert notification onto a JetStream stream so other
// processes can consume the feed. Best-effort: the engine never blocks or
// fails on the event bus.
type Events struct {
	logger *zap.Logger
	js     nats.JetStreamContext
}

// NewEvents creates the alert event publisher and ensures the ALERTS
// stream exists
func NewEvents(logger *zap.Logger, js nats.JetStreamContext) (*Events, error) {
	_, err := js.StreamInfo(alertStreamName)
	if err != nil {
		if err != nats.ErrStreamNotFound {
			return nil, fmt.Errorf("failed to get stream info: %w", err)
		}
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     alertStreamName,
			Subjects: []string{alertSubjects},
			Storage:  nats.FileStorage,
			MaxAge:   7 * 24 * time.Hour,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create alert stream: %w", err)
		}
	}

	return &Events{logger: logger.Named("alert-events"), js: js}, nil
}

// Publish writes one notification to the feed under alert.<transition>
func (e *Events) Publish(ctx context.Context, n Notification) error {
	event := Event{
		ID:         uuid.New().String(),
		TargetID:   n.Target.ID,
		TargetName: n.Target.Name,
		Address:    n.Target.Address,
		CheckType:  n.Target.CheckType,
		Transition: n.Transition,
		Message:    n.Outcome.Message,
		Failures:   n.ConsecutiveFailures,
		CreatedAt:  n.Timestamp,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal alert event: %w", err)
	}

	if _, err := e.js.Publish("alert."+string(n.Transition), data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish alert event: %w", err)
	}

	e.logger.Debug("alert event published",
		zap.String("id", event.ID),
		zap.Int64("target_id", event.TargetID),
		zap.String("transition", string(event.Transition)))

	return nil
}
