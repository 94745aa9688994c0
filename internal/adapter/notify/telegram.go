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

// TelegramNotifier delivers notification events as Telegram bot messages.
// Each queue item's channel_ref carries the chat ID to message.
type TelegramNotifier struct {
	token      string
	apiBase    string
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewTelegramNotifier creates a Telegram channel using the Bot API.
// apiBase overrides the API host for tests; pass "" for the default.
func NewTelegramNotifier(token, apiBase string, httpClient HTTPClient, log zerolog.Logger) *TelegramNotifier {
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		token:      token,
		apiBase:    apiBase,
		httpClient: httpClient,
		log:        log,
	}
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Notify sends a human-readable message to the recipient chat.
func (n *TelegramNotifier) Notify(ctx context.Context, event ports.NotificationEvent) error {
	if event.RecipientRef == "" {
		return fmt.Errorf("telegram: event has no recipient chat")
	}

	body, err := json.Marshal(telegramMessage{
		ChatID: event.RecipientRef,
		Text:   renderText(event),
	})
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	n.log.Debug().
		Str("type", string(event.Type)).
		Str("chat_id", event.RecipientRef).
		Msg("telegram: delivered")
	return nil
}

// Name returns the channel name.
func (n *TelegramNotifier) Name() string {
	return "telegram"
}

func renderText(event ports.NotificationEvent) string {
	switch event.Type {
	case ports.NotifyItemAdded:
		return fmt.Sprintf("Your %s request for %s has been queued.",
			event.Item.Kind, event.Item.Amount.StringFixed(2))
	case ports.NotifyMatchProposed:
		return fmt.Sprintf("A counterpart was found for your %s of %s. Awaiting operator approval.",
			event.Item.Kind, event.Item.Amount.StringFixed(2))
	case ports.NotifyMatchApproved:
		return fmt.Sprintf("Your %s of %s was approved. Payment details will follow.",
			event.Item.Kind, event.Item.Amount.StringFixed(2))
	case ports.NotifyMatchRejected:
		if event.Reason != "" {
			return fmt.Sprintf("Your pending %s was returned to the queue: %s", event.Item.Kind, event.Reason)
		}
		return fmt.Sprintf("Your pending %s was returned to the queue.", event.Item.Kind)
	case ports.NotifyMatchCompleted:
		return fmt.Sprintf("Your %s of %s is complete.",
			event.Item.Kind, event.Item.Amount.StringFixed(2))
	case ports.NotifyItemCancelled:
		return fmt.Sprintf("Your %s request was cancelled.", event.Item.Kind)
	default:
		return fmt.Sprintf("Queue update: %s", event.Type)
	}
}
