// Package notify holds the outbound notification channels. Each channel
// implements ports.Notifier; the dispatcher owns retries-or-not policy and
// failure recording, so a channel only has to deliver once and report.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"p2p-match-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookNotifier delivers notification events as signed JSON POSTs to a
// single operator-configured endpoint.
type WebhookNotifier struct {
	url        string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewWebhookNotifier creates a webhook channel. The secret signs every
// payload; receivers verify the X-Signature header before trusting it.
func NewWebhookNotifier(url, secret string, sigSvc ports.SignatureService, httpClient HTTPClient, log zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:        url,
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		log:        log,
	}
}

// Notify POSTs the event to the configured endpoint. Non-2xx responses are
// errors so the dispatcher records the failure.
func (n *WebhookNotifier) Notify(ctx context.Context, event ports.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", n.sigSvc.Sign(n.secret, string(payload)))

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook endpoint returned status %d", resp.StatusCode)
	}

	n.log.Debug().
		Str("type", string(event.Type)).
		Int("status", resp.StatusCode).
		Msg("webhook: delivered")
	return nil
}

// Name returns the channel name.
func (n *WebhookNotifier) Name() string {
	return "webhook"
}
