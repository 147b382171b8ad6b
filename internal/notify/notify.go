// Package notify delivers load failure messages to operators.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Config holds notification settings.
type Config struct {
	SlackWebhookURL string `yaml:"slack_webhook_url" validate:"omitempty,url"`
	Channel         string `yaml:"channel"`
}

// Notifier sends a single text message.
type Notifier interface {
	Notify(ctx context.Context, msg string) error
}

// New returns a Slack notifier when a webhook is configured and a log
// notifier otherwise.
func New(cfg Config) Notifier {
	if cfg.SlackWebhookURL == "" {
		return Log{}
	}
	return NewSlack(cfg, nil)
}

// Slack posts messages to an incoming webhook.
type Slack struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlack creates a Slack notifier. A nil client gets a 10s timeout.
func NewSlack(cfg Config, client *http.Client) *Slack {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Slack{webhookURL: cfg.SlackWebhookURL, channel: cfg.Channel, client: client}
}

type slackMessage struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

// Notify posts msg to the webhook.
func (s *Slack) Notify(ctx context.Context, msg string) error {
	body, err := json.Marshal(slackMessage{Text: msg, Channel: s.channel})
	if err != nil {
		return fmt.Errorf("failed to marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}
	return nil
}

// Log writes messages to the default logger at error level.
type Log struct{}

// Notify logs msg.
func (Log) Notify(_ context.Context, msg string) error {
	slog.Error("Load failure notification", "message", msg)
	return nil
}
