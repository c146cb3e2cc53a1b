package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nettriage/internal/schema"
)

// WebhookChannel sends alerts via HTTP webhook.
type WebhookChannel struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

// NewWebhookChannel creates a new webhook channel.
func NewWebhookChannel(name, url string, headers map[string]string) *WebhookChannel {
	return &WebhookChannel{
		name:    name,
		url:     url,
		headers: headers,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (w *WebhookChannel) Name() string {
	return w.name
}

func (w *WebhookChannel) Send(ctx context.Context, alert *schema.EnrichedAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// SlackChannel sends alerts to Slack.
type SlackChannel struct {
	webhookURL string
	channel    string
	username   string
	client     *http.Client
}

// NewSlackChannel creates a new Slack channel.
func NewSlackChannel(webhookURL, channel, username string) *SlackChannel {
	return &SlackChannel{
		webhookURL: webhookURL,
		channel:    channel,
		username:   username,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *SlackChannel) Name() string {
	return "slack"
}

func (s *SlackChannel) Send(ctx context.Context, alert *schema.EnrichedAlert) error {
	payload := map[string]interface{}{
		"channel":  s.channel,
		"username": s.username,
		"attachments": []map[string]interface{}{
			{
				"color": s.severityColor(alert.Severity),
				"title": fmt.Sprintf("[%s/%s] %s", alert.Priority, strings.ToUpper(string(alert.Severity)), alert.ProbableRootCause),
				"text":  strings.Join(alert.SupportingEvidence, "\n"),
				"fields": []map[string]interface{}{
					{"title": "Devices", "value": strings.Join(alert.AffectedDevices, ", "), "short": true},
					{"title": "Blast radius", "value": fmt.Sprintf("%d devices", alert.BlastRadiusCount), "short": true},
					{"title": "Confidence", "value": fmt.Sprintf("%.0f%%", alert.Confidence*100), "short": true},
					{"title": "ETA", "value": alert.EstimatedResolutionTime, "short": true},
				},
				"footer": fmt.Sprintf("Alert ID: %s | %s", alert.ID.String()[:8], alert.AlertType),
				"ts":     alert.CreatedAt.Unix(),
			},
		},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("slack returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (s *SlackChannel) severityColor(sev schema.Severity) string {
	switch sev {
	case schema.SeverityCritical:
		return "#FF0000"
	case schema.SeverityError:
		return "#FF8C00"
	case schema.SeverityWarning:
		return "#FFD700"
	default:
		return "#36A64F"
	}
}
