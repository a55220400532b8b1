package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
)

// WebhookChannel sends alert notifications via HTTP POST.
type WebhookChannel struct {
	URL    string
	client *http.Client
}

// NewWebhookChannel creates a webhook notification channel.
func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	return &WebhookChannel{
		URL:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookChannel) Type() string {
	return "webhook"
}

func (w *WebhookChannel) Send(ctx context.Context, a Alert) error {
	return postJSON(ctx, w.client, w.URL, map[string]any{
		"subject":   a.Subject,
		"message":   a.Message,
		"source":    "ecomonitor-pipeline",
		"timestamp": a.Time.Format(time.RFC3339),
	})
}

// SlackChannel sends alert notifications to Slack via incoming webhook.
type SlackChannel struct {
	WebhookURL string
	client     *http.Client
}

// NewSlackChannel creates a Slack notification channel.
func NewSlackChannel(webhookURL string, timeout time.Duration) *SlackChannel {
	return &SlackChannel{
		WebhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *SlackChannel) Type() string {
	return "slack"
}

func (s *SlackChannel) Send(ctx context.Context, a Alert) error {
	return postJSON(ctx, s.client, s.WebhookURL, map[string]any{
		"text": fmt.Sprintf(":rotating_light: %s", a.Subject),
		"attachments": []map[string]any{{
			"color":  "#FF0000",
			"text":   a.Message,
			"footer": "EcoMonitor data pipeline",
			"ts":     a.Time.Unix(),
		}},
	})
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "EcoMonitor-Pipeline/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("alert endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// LogChannel writes alerts to the log (for local runs).
type LogChannel struct {
	logger *logging.Logger
}

// NewLogChannel creates a log-based notification channel.
func NewLogChannel(logger *logging.Logger) *LogChannel {
	return &LogChannel{logger: logger}
}

func (l *LogChannel) Type() string {
	return "log"
}

func (l *LogChannel) Send(ctx context.Context, a Alert) error {
	l.logger.WarnContext(ctx, "ALERT", "subject", a.Subject, "message", a.Message)
	return nil
}

// MemoryChannel records alerts in memory. Used by tests.
type MemoryChannel struct {
	mu     sync.Mutex
	alerts []Alert
	// Err, when set, is returned by Send after the alert is recorded.
	Err error
}

func NewMemoryChannel() *MemoryChannel {
	return &MemoryChannel{}
}

func (m *MemoryChannel) Type() string {
	return "memory"
}

func (m *MemoryChannel) Send(_ context.Context, a Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, a)
	return m.Err
}

// Alerts returns a copy of everything sent so far.
func (m *MemoryChannel) Alerts() []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}
