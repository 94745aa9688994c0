package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"p2p-match-engine/internal/core/domain"
	"p2p-match-engine/internal/core/ports"
	"p2p-match-engine/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubHTTPClient captures the outbound request and replays a canned response.
type stubHTTPClient struct {
	req    *http.Request
	body   []byte
	status int
	err    error
}

func (s *stubHTTPClient) Do(req *http.Request) (*http.Response, error) {
	s.req = req
	if req.Body != nil {
		s.body, _ = io.ReadAll(req.Body)
	}
	if s.err != nil {
		return nil, s.err
	}
	return &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(strings.NewReader("{}")),
	}, nil
}

func sampleEvent(eventType ports.NotificationType) ports.NotificationEvent {
	return ports.NotificationEvent{
		Type: eventType,
		Item: &domain.QueueItem{
			ID:          uuid.New(),
			Kind:        domain.ItemKindWithdrawal,
			CustomerID:  "cust-1",
			Amount:      decimal.NewFromInt(500),
			PaymentType: domain.PaymentTypeBankTransfer,
			State:       domain.ItemStatePending,
			EnqueuedAt:  time.Now().UTC(),
			ChannelRef:  "chat-77",
		},
		RecipientRef: "chat-77",
	}
}

func TestWebhookNotifier_SignsAndDelivers(t *testing.T) {
	client := &stubHTTPClient{status: http.StatusOK}
	sigSvc := service.NewHMACSignatureService()
	n := NewWebhookNotifier("https://hooks.example.com/queue", "hook-secret", sigSvc, client, zerolog.Nop())

	event := sampleEvent(ports.NotifyMatchProposed)
	require.NoError(t, n.Notify(context.Background(), event))

	require.NotNil(t, client.req)
	assert.Equal(t, http.MethodPost, client.req.Method)
	assert.Equal(t, "https://hooks.example.com/queue", client.req.URL.String())
	assert.Equal(t, "application/json", client.req.Header.Get("Content-Type"))

	// The signature must verify against the exact payload bytes sent.
	sig := client.req.Header.Get("X-Signature")
	require.NotEmpty(t, sig)
	assert.True(t, sigSvc.Verify("hook-secret", string(client.body), sig))

	var sent ports.NotificationEvent
	require.NoError(t, json.Unmarshal(client.body, &sent))
	assert.Equal(t, ports.NotifyMatchProposed, sent.Type)
}

func TestWebhookNotifier_Non2xxIsError(t *testing.T) {
	client := &stubHTTPClient{status: http.StatusBadGateway}
	n := NewWebhookNotifier("https://hooks.example.com/queue", "s", service.NewHMACSignatureService(), client, zerolog.Nop())

	err := n.Notify(context.Background(), sampleEvent(ports.NotifyItemAdded))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestWebhookNotifier_TransportError(t *testing.T) {
	client := &stubHTTPClient{err: errors.New("connection refused")}
	n := NewWebhookNotifier("https://hooks.example.com/queue", "s", service.NewHMACSignatureService(), client, zerolog.Nop())

	err := n.Notify(context.Background(), sampleEvent(ports.NotifyItemAdded))
	assert.Error(t, err)
}

func TestWebhookNotifier_Name(t *testing.T) {
	n := NewWebhookNotifier("", "", service.NewHMACSignatureService(), &stubHTTPClient{}, zerolog.Nop())
	assert.Equal(t, "webhook", n.Name())
}

func TestTelegramNotifier_SendsMessageToChat(t *testing.T) {
	client := &stubHTTPClient{status: http.StatusOK}
	n := NewTelegramNotifier("bot-token", "https://tg.test", client, zerolog.Nop())

	event := sampleEvent(ports.NotifyMatchApproved)
	require.NoError(t, n.Notify(context.Background(), event))

	require.NotNil(t, client.req)
	assert.Equal(t, "https://tg.test/botbot-token/sendMessage", client.req.URL.String())

	var msg telegramMessage
	require.NoError(t, json.Unmarshal(client.body, &msg))
	assert.Equal(t, "chat-77", msg.ChatID)
	assert.Contains(t, msg.Text, "approved")
	assert.Contains(t, msg.Text, "500.00")
}

func TestTelegramNotifier_RejectionMessageCarriesReason(t *testing.T) {
	client := &stubHTTPClient{status: http.StatusOK}
	n := NewTelegramNotifier("tok", "https://tg.test", client, zerolog.Nop())

	event := sampleEvent(ports.NotifyMatchRejected)
	event.Reason = "amounts disputed"
	require.NoError(t, n.Notify(context.Background(), event))

	var msg telegramMessage
	require.NoError(t, json.Unmarshal(client.body, &msg))
	assert.Contains(t, msg.Text, "amounts disputed")
	assert.Contains(t, msg.Text, "returned to the queue")
}

func TestTelegramNotifier_MissingRecipient(t *testing.T) {
	n := NewTelegramNotifier("tok", "https://tg.test", &stubHTTPClient{status: http.StatusOK}, zerolog.Nop())

	event := sampleEvent(ports.NotifyItemAdded)
	event.RecipientRef = ""
	assert.Error(t, n.Notify(context.Background(), event))
}

func TestTelegramNotifier_APIError(t *testing.T) {
	client := &stubHTTPClient{status: http.StatusForbidden}
	n := NewTelegramNotifier("tok", "https://tg.test", client, zerolog.Nop())

	err := n.Notify(context.Background(), sampleEvent(ports.NotifyItemAdded))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestTelegramNotifier_DefaultAPIBase(t *testing.T) {
	client := &stubHTTPClient{status: http.StatusOK}
	n := NewTelegramNotifier("tok", "", client, zerolog.Nop())

	require.NoError(t, n.Notify(context.Background(), sampleEvent(ports.NotifyItemAdded)))
	assert.True(t, strings.HasPrefix(client.req.URL.String(), "https://api.telegram.org/"))
}
