package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/upmon/upmon/internal/model"
)

// DefaultBotAPIBase is the bot-messaging API endpoint prefix. Overridable
// so tests can point the sender at a local server.
const DefaultBotAPIBase = "https://api.telegram.org"

// ChatBotSender delivers plain-text messages through a bot-messaging API.
// The channel endpoint carries "bot_token,chat_id" addressing.
type ChatBotSender struct {
	logger  *zap.Logger
	client  *http.Client
	apiBase string
}

// NewChatBotSender creates a chat-bot sender. An empty apiBase selects the
// default bot API.
func NewChatBotSender(logger *zap.Logger, client *http.Client, apiBase string) *ChatBotSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if apiBase == "" {
		apiBase = DefaultBotAPIBase
	}
	return &ChatBotSender{
		logger:  logger.Named("chatbot"),
		client:  client,
		apiBase: strings.TrimRight(apiBase, "/"),
	}
}

// Send implements Sender
func (c *ChatBotSender) Send(ctx context.Context, channel *model.Channel, n Notification) error {
	token, chatID, err := channel.BotEndpoint()
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", formatText(n))

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create bot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("bot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("bot API responded with status %d: %s", resp.StatusCode, apiErr.Description)
	}
	return nil
}
