package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vietddude/syncwatch/internal/core/domain"
)

// Kind categorizes an alert.
type Kind string

const (
	KindSync     Kind = "sync"
	KindRecovery Kind = "recovery"
)

// Alert is one message about one chain. It is never persisted.
type Alert struct {
	Kind      Kind
	ChainID   domain.ChainID
	ChainName string
	Status    domain.SyncStatus
	CycleID   string
	Text      string
}

// Alerter sends alerts to a channel.
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// New returns the alerter for the configured kind. An empty URL yields a NoopAlerter.
func New(kind, url string, timeout time.Duration) (Alerter, error) {
	if url == "" {
		return &NoopAlerter{}, nil
	}
	switch kind {
	case "", "slack":
		return NewSlackAlerter(url, timeout), nil
	case "webhook":
		return NewWebhookAlerter(url, timeout), nil
	default:
		return nil, fmt.Errorf("unknown alert kind %q", kind)
	}
}

func alerterName(a Alerter) string {
	switch a.(type) {
	case *SlackAlerter:
		return "slack"
	case *WebhookAlerter:
		return "webhook"
	case *NoopAlerter:
		return "noop"
	default:
		return "unknown"
	}
}

// SlackAlerter posts {"text": ...} to a Slack incoming webhook.
type SlackAlerter struct {
	webhookURL string
	client     *http.Client
}

// NewSlackAlerter creates a Slack alerter with the given webhook URL.
func NewSlackAlerter(webhookURL string, timeout time.Duration) *SlackAlerter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SlackAlerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

// Send sends an alert to Slack.
func (s *SlackAlerter) Send(ctx context.Context, alert Alert) error {
	return post(ctx, s.client, s.webhookURL, "slack", map[string]string{"text": alert.Text})
}

// WebhookAlerter posts a structured JSON document to a generic endpoint.
type WebhookAlerter struct {
	url    string
	client *http.Client
}

// NewWebhookAlerter creates a generic webhook alerter.
func NewWebhookAlerter(url string, timeout time.Duration) *WebhookAlerter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookAlerter{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Send sends an alert to the webhook endpoint.
func (w *WebhookAlerter) Send(ctx context.Context, alert Alert) error {
	payload := map[string]any{
		"kind":       string(alert.Kind),
		"chain_id":   alert.ChainID,
		"chain_name": alert.ChainName,
		"status":     alert.Status,
		"cycle_id":   alert.CycleID,
		"text":       alert.Text,
		"time":       time.Now().UTC().Format(time.RFC3339),
	}
	return post(ctx, w.client, w.url, "webhook", payload)
}

func post(ctx context.Context, client *http.Client, url, channel string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", channel, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s alert: %w", channel, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", channel, resp.StatusCode)
	}
	return nil
}

// NoopAlerter does nothing. Used when no webhook is configured.
type NoopAlerter struct{}

func (n *NoopAlerter) Send(_ context.Context, _ Alert) error { return nil }
