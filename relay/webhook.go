package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookSink posts messages as {"content": text} JSON to a webhook URL.
// This matches the common chat-platform webhook shape, so the bot can relay
// without holding a full client session.
type WebhookSink struct {
	URL    string
	Client *http.Client
}

// NewWebhookSink returns a sink with a timeout-bounded client.
func NewWebhookSink(url string) *WebhookSink {
	return &WebhookSink{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *WebhookSink) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"content": text})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
