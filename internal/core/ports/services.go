package ports

import (
	"context"

	"p2p-match-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Queue manager ---

// QueueService is the queue manager: the single writer for item and match
// state transitions.
type QueueService interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (*domain.QueueItem, error)
	GetItem(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error)
	ListItems(ctx context.Context, params QueueListParams) ([]domain.QueueItem, error)
	Cancel(ctx context.Context, itemID uuid.UUID) (*domain.QueueItem, error)
	UpdateNotes(ctx context.Context, itemID uuid.UUID, notes *string) (*domain.QueueItem, error)

	GetMatch(ctx context.Context, id uuid.UUID) (*domain.Match, error)
	ListMatches(ctx context.Context, state *domain.MatchState) ([]domain.Match, error)
	ApproveMatch(ctx context.Context, matchID uuid.UUID) (*domain.Match, error)
	RejectMatch(ctx context.Context, matchID uuid.UUID, reason string) (*domain.Match, error)
	// MarkCompleted records the external settlement signal for an approved
	// match, moving both items to COMPLETED.
	MarkCompleted(ctx context.Context, matchID uuid.UUID) (*domain.Match, error)
}

// EnqueueRequest holds validated input for queue submission.
type EnqueueRequest struct {
	Kind        domain.ItemKind
	CustomerID  string
	Amount      decimal.Decimal
	PaymentType domain.PaymentType
	Priority    int
	ChannelRef  string
	Notes       *string
}

// --- Stats ---

// StatsService exposes read-only aggregates over the store.
type StatsService interface {
	GetStats(ctx context.Context) (*Stats, error)
}

// Stats is the aggregate view served to operators.
type Stats struct {
	TotalItems         int64                        `json:"total_items"`
	PendingWithdrawals int64                        `json:"pending_withdrawals"`
	PendingDeposits    int64                        `json:"pending_deposits"`
	MatchedPairs       int64                        `json:"matched_pairs"`
	AverageWaitSeconds float64                      `json:"average_wait_seconds"`
	SuccessRate        float64                      `json:"success_rate"`
	ByPaymentType      map[domain.PaymentType]int64 `json:"by_payment_type,omitempty"`
}

// StatsCache is a short-TTL read-through cache for the stats aggregate so
// dashboard polling never hammers the store. Get returns nil, nil on miss.
type StatsCache interface {
	Get(ctx context.Context) ([]byte, error)
	Set(ctx context.Context, value []byte) error
}

// --- Notification channel ---

// NotificationType classifies outbound notifications.
type NotificationType string

const (
	NotifyItemAdded      NotificationType = "ItemAdded"
	NotifyMatchProposed  NotificationType = "MatchProposed"
	NotifyMatchApproved  NotificationType = "MatchApproved"
	NotifyMatchRejected  NotificationType = "MatchRejected"
	NotifyMatchCompleted NotificationType = "MatchCompleted"
	NotifyItemCancelled  NotificationType = "ItemCancelled"
)

// NotificationEvent is the payload handed to the external channel.
// RecipientRef is the target item's opaque channel routing data.
type NotificationEvent struct {
	Type         NotificationType  `json:"type"`
	Item         *domain.QueueItem `json:"item"`
	PairedItem   *domain.QueueItem `json:"paired_item,omitempty"`
	Match        *domain.Match     `json:"match,omitempty"`
	RecipientRef string            `json:"recipient_ref"`
	Reason       string            `json:"reason,omitempty"`
}

// Notifier is the external notification channel. The core treats delivery
// as best-effort: errors are recorded to history, never retried here.
type Notifier interface {
	Notify(ctx context.Context, event NotificationEvent) error
	Name() string
}

// Dispatcher decouples notification delivery from state transitions.
// Publish must never block the caller.
type Dispatcher interface {
	Publish(event NotificationEvent)
}

// --- Operator auth ---

// TokenService validates operator bearer tokens. Token issuance lives
// outside the engine.
type TokenService interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed operator token claims.
type TokenClaims struct {
	OperatorID string
	Role       string
}

// SignatureService signs outbound webhook payloads (HMAC-SHA256).
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}
