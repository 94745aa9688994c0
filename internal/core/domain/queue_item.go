package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemKind distinguishes the two queues.
type ItemKind string

const (
	ItemKindWithdrawal ItemKind = "WITHDRAWAL"
	ItemKindDeposit    ItemKind = "DEPOSIT"
)

// Opposite returns the counterpart queue kind.
func (k ItemKind) Opposite() ItemKind {
	if k == ItemKindWithdrawal {
		return ItemKindDeposit
	}
	return ItemKindWithdrawal
}

// PaymentType is the rail a customer wants to move money over.
type PaymentType string

const (
	PaymentTypeBankTransfer PaymentType = "bank_transfer"
	PaymentTypeCrypto       PaymentType = "crypto"
	PaymentTypePayPal       PaymentType = "paypal"
	PaymentTypeZelle        PaymentType = "zelle"
	PaymentTypeVenmo        PaymentType = "venmo"
	PaymentTypeCashApp      PaymentType = "cash_app"
)

// ValidPaymentTypes lists every accepted payment rail.
var ValidPaymentTypes = []PaymentType{
	PaymentTypeBankTransfer,
	PaymentTypeCrypto,
	PaymentTypePayPal,
	PaymentTypeZelle,
	PaymentTypeVenmo,
	PaymentTypeCashApp,
}

// IsValid reports whether p is a known payment type.
func (p PaymentType) IsValid() bool {
	for _, v := range ValidPaymentTypes {
		if p == v {
			return true
		}
	}
	return false
}

// ItemState is the lifecycle state of a queue item.
type ItemState string

const (
	ItemStatePending    ItemState = "PENDING"
	ItemStateMatched    ItemState = "MATCHED"
	ItemStateProcessing ItemState = "PROCESSING"
	ItemStateCompleted  ItemState = "COMPLETED"
	ItemStateRejected   ItemState = "REJECTED"
	ItemStateCancelled  ItemState = "CANCELLED"
)

// IsValid reports whether s is a known item state.
func (s ItemState) IsValid() bool {
	switch s {
	case ItemStatePending, ItemStateMatched, ItemStateProcessing,
		ItemStateCompleted, ItemStateRejected, ItemStateCancelled:
		return true
	}
	return false
}

// itemTransitions enumerates the legal state machine edges. Transitions are
// only ever driven by the queue manager; everything else is rejected.
var itemTransitions = map[ItemState][]ItemState{
	ItemStatePending:    {ItemStateMatched, ItemStateCancelled},
	ItemStateMatched:    {ItemStateProcessing, ItemStatePending, ItemStateCancelled},
	ItemStateProcessing: {ItemStateCompleted},
}

// CanTransition reports whether the from→to edge exists in the state machine.
func CanTransition(from, to ItemState) bool {
	for _, next := range itemTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state admits no further transitions.
// Terminal items stay in the store for audit and export but never re-enter
// matching.
func (s ItemState) IsTerminal() bool {
	return s == ItemStateCompleted || s == ItemStateRejected || s == ItemStateCancelled
}

// QueueItem is a pending withdrawal or deposit awaiting a P2P counterpart.
// Kind, CustomerID, Amount, EnqueuedAt and ChannelRef are immutable after
// creation; State moves only through the queue manager.
type QueueItem struct {
	ID          uuid.UUID       `json:"id"`
	Kind        ItemKind        `json:"kind"`
	CustomerID  string          `json:"customer_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentType PaymentType     `json:"payment_type"`
	Priority    int             `json:"priority"`
	State       ItemState       `json:"state"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	ChannelRef  string          `json:"channel_ref"`
	Notes       *string         `json:"notes,omitempty"`
	Version     int64           `json:"-"` // optimistic concurrency stamp
	UpdatedAt   time.Time       `json:"updated_at"`
}

// IsActive reports whether the item still participates in the queues.
func (q *QueueItem) IsActive() bool {
	return !q.State.IsTerminal()
}

// WaitingFor returns how long the item has been in the queue as of now.
func (q *QueueItem) WaitingFor(now time.Time) time.Duration {
	return now.Sub(q.EnqueuedAt)
}
