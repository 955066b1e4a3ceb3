package model

import (
	"fmt"
	"strings"
	"time"
)

// ChannelKind represents the delivery mechanism of a notification channel
type ChannelKind string

const (
	ChannelWebhook ChannelKind = "webhook"
	ChannelChatBot ChannelKind = "chat_bot"
)

// Transition represents the kind of alert being delivered
type Transition string

const (
	TransitionError      Transition = "error"
	TransitionRecovery   Transition = "recovery"
	TransitionEscalation Transition = "escalation"
)

// Channel is an external notification sink linked to one or more targets
type Channel struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Kind     ChannelKind `json:"kind"`
	Endpoint string      `json:"endpoint"`
	Active   bool        `json:"active"`

	CreatedAt time.Time `json:"created_at"`
}

// BotEndpoint splits a chat-bot endpoint of the form "bot_token,chat_id"
func (c *Channel) BotEndpoint() (token, chatID string, err error) {
	parts := strings.SplitN(c.Endpoint, ",", 2)
	if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", fmt.Errorf("invalid chat_bot endpoint %q, expected \"bot_token,chat_id\"", c.Endpoint)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}
