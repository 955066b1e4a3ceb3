package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/model"
)

// webhookPayload is the JSON body posted to webhook channels
type webhookPayload struct {
	Timestamp  string          `json:"timestamp"`
	AlertType  string          `json:"alert_type"`
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	Service    webhookService  `json:"service"`
	MonitorID  int64           `json:"monitor_id"`
	Failures   int             `json:"consecutive_errors"`
	LatencyMS  int64           `json:"response_time_ms,omitempty"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	ChannelTag string          `json:"channel,omitempty"`
}

type webhookService struct {
	Name    string `json:"name"`
	Address string `json:"url"`
}

// WebhookSender posts alert payloads to webhook URLs. Any 2xx response
// counts as delivered; everything else is an error for the dispatcher to
// log and drop. The notification itself is never retried.
type WebhookSender struct {
	logger *zap.Logger
	client *http.Client
}

// NewWebhookSender creates a webhook sender using the given client
func NewWebhookSender(logger *zap.Logger, client *http.Client) *WebhookSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSender{logger: logger.Named("webhook"), client: client}
}

// Send implements Sender
func (w *WebhookSender) Send(ctx context.Context, channel *model.Channel, n Notification) error {
	status := "down"
	if n.Transition == model.TransitionRecovery {
		status = "up"
	}

	payload := webhookPayload{
		Timestamp:  n.Timestamp.Format(time.RFC3339),
		AlertType:  string(n.Transition),
		Status:     status,
		Message:    n.Outcome.Message,
		Service:    webhookService{Name: n.Target.Name, Address: n.Target.Address},
		MonitorID:  n.Target.ID,
		Failures:   n.ConsecutiveFailures,
		ChannelTag: channel.Name,
	}
	if n.Outcome.Latency > 0 {
		payload.LatencyMS = n.Outcome.Latency.Milliseconds()
	}
	if detail, err := json.Marshal(n.Outcome.Detail); err == nil && string(detail) != "{}" {
		payload.Detail = detail
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, channel.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "upmon/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}
