package dto

import (
	"encoding/json"
	"time"

	"p2p-match-engine/internal/core/domain"
	"p2p-match-engine/internal/core/ports"
	"p2p-match-engine/pkg/apperror"

	"github.com/shopspring/decimal"
)

// EnqueueRequest is the request body for queue submission. The amount is a
// decimal string so client-side floats never leak into money handling.
type EnqueueRequest struct {
	CustomerID  string  `json:"customer_id" binding:"required,safe_id,max=64"`
	Amount      string  `json:"amount" binding:"required,max=32"`
	PaymentType string  `json:"payment_type" binding:"required,max=32"`
	Priority    int     `json:"priority" binding:"gte=0,lte=1000"`
	ChannelRef  string  `json:"channel_ref" binding:"required,max=128"`
	Notes       *string `json:"notes,omitempty" binding:"omitempty,max=500"`
}

// ToEnqueueRequest validates the body into a service-level request.
func (r EnqueueRequest) ToEnqueueRequest(kind domain.ItemKind) (ports.EnqueueRequest, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return ports.EnqueueRequest{}, apperror.Validation("amount must be a decimal number")
	}
	if !amount.IsPositive() {
		return ports.EnqueueRequest{}, apperror.Validation("amount must be positive")
	}
	pt := domain.PaymentType(r.PaymentType)
	if !pt.IsValid() {
		return ports.EnqueueRequest{}, apperror.Validation("unknown payment type")
	}
	return ports.EnqueueRequest{
		Kind:        kind,
		CustomerID:  r.CustomerID,
		Amount:      amount,
		PaymentType: pt,
		Priority:    r.Priority,
		ChannelRef:  r.ChannelRef,
		Notes:       r.Notes,
	}, nil
}

// NotesRequest is the request body for operator notes. A null notes field
// clears the note.
type NotesRequest struct {
	Notes *string `json:"notes" binding:"omitempty,max=500"`
}

// RejectRequest is the request body for match rejection.
type RejectRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// QueueListQuery holds the optional filters for queue listing.
type QueueListQuery struct {
	Kind        *string `form:"kind" binding:"omitempty,oneof=WITHDRAWAL DEPOSIT"`
	PaymentType *string `form:"payment_type" binding:"omitempty,max=32"`
	State       *string `form:"state" binding:"omitempty,max=32"`
	MinAmount   *string `form:"min_amount" binding:"omitempty,max=32"`
	MaxAmount   *string `form:"max_amount" binding:"omitempty,max=32"`
	Limit       int     `form:"limit" binding:"gte=0,lte=1000"`
}

// ToListParams validates the query into repository filter params.
func (q QueueListQuery) ToListParams() (ports.QueueListParams, error) {
	params := ports.QueueListParams{Limit: q.Limit}
	if q.Kind != nil {
		kind := domain.ItemKind(*q.Kind)
		params.Kind = &kind
	}
	if q.PaymentType != nil {
		pt := domain.PaymentType(*q.PaymentType)
		if !pt.IsValid() {
			return params, apperror.Validation("unknown payment type")
		}
		params.PaymentType = &pt
	}
	if q.State != nil {
		state := domain.ItemState(*q.State)
		if !state.IsValid() {
			return params, apperror.Validation("unknown item state")
		}
		params.State = &state
	}
	if q.MinAmount != nil {
		min, err := decimal.NewFromString(*q.MinAmount)
		if err != nil {
			return params, apperror.Validation("min_amount must be a decimal number")
		}
		params.MinAmount = &min
	}
	if q.MaxAmount != nil {
		max, err := decimal.NewFromString(*q.MaxAmount)
		if err != nil {
			return params, apperror.Validation("max_amount must be a decimal number")
		}
		params.MaxAmount = &max
	}
	return params, nil
}

// QueueItemResponse is the wire form of a queue item.
type QueueItemResponse struct {
	ID             string  `json:"id"`
	Kind           string  `json:"kind"`
	CustomerID     string  `json:"customer_id"`
	Amount         string  `json:"amount"`
	PaymentType    string  `json:"payment_type"`
	Priority       int     `json:"priority"`
	State          string  `json:"state"`
	EnqueuedAt     string  `json:"enqueued_at"`
	ChannelRef     string  `json:"channel_ref"`
	Notes          *string `json:"notes,omitempty"`
	WaitingSeconds float64 `json:"waiting_seconds"`
	UpdatedAt      string  `json:"updated_at"`
}

// FromQueueItem converts a domain item for the wire.
func FromQueueItem(item *domain.QueueItem, now time.Time) QueueItemResponse {
	return QueueItemResponse{
		ID:             item.ID.String(),
		Kind:           string(item.Kind),
		CustomerID:     item.CustomerID,
		Amount:         item.Amount.StringFixed(2),
		PaymentType:    string(item.PaymentType),
		Priority:       item.Priority,
		State:          string(item.State),
		EnqueuedAt:     item.EnqueuedAt.UTC().Format(time.RFC3339),
		ChannelRef:     item.ChannelRef,
		Notes:          item.Notes,
		WaitingSeconds: item.WaitingFor(now).Seconds(),
		UpdatedAt:      item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// FromQueueItems converts a slice of domain items for the wire.
func FromQueueItems(items []domain.QueueItem, now time.Time) []QueueItemResponse {
	out := make([]QueueItemResponse, 0, len(items))
	for i := range items {
		out = append(out, FromQueueItem(&items[i], now))
	}
	return out
}

// MatchResponse is the wire form of a match.
type MatchResponse struct {
	ID           string  `json:"id"`
	WithdrawalID string  `json:"withdrawal_id"`
	DepositID    string  `json:"deposit_id"`
	Score        int     `json:"score"`
	State        string  `json:"state"`
	RejectReason *string `json:"reject_reason,omitempty"`
	CreatedAt    string  `json:"created_at"`
	ResolvedAt   *string `json:"resolved_at,omitempty"`
}

// FromMatch converts a domain match for the wire.
func FromMatch(m *domain.Match) MatchResponse {
	resp := MatchResponse{
		ID:           m.ID.String(),
		WithdrawalID: m.WithdrawalID.String(),
		DepositID:    m.DepositID.String(),
		Score:        m.Score,
		State:        string(m.State),
		RejectReason: m.RejectReason,
		CreatedAt:    m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if m.ResolvedAt != nil {
		s := m.ResolvedAt.UTC().Format(time.RFC3339)
		resp.ResolvedAt = &s
	}
	return resp
}

// FromMatches converts a slice of domain matches for the wire.
func FromMatches(matches []domain.Match) []MatchResponse {
	out := make([]MatchResponse, 0, len(matches))
	for i := range matches {
		out = append(out, FromMatch(&matches[i]))
	}
	return out
}

// HistoryEntryResponse is the wire form of an audit entry.
type HistoryEntryResponse struct {
	ID        string  `json:"id"`
	ItemID    *string `json:"item_id,omitempty"`
	MatchID   *string `json:"match_id,omitempty"`
	EventType string  `json:"event_type"`
	Payload   any     `json:"payload,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// FromHistory converts a slice of audit entries for the wire.
func FromHistory(entries []domain.HistoryEntry) []HistoryEntryResponse {
	out := make([]HistoryEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp := HistoryEntryResponse{
			ID:        e.ID.String(),
			EventType: string(e.EventType),
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		}
		if e.ItemID != nil {
			s := e.ItemID.String()
			resp.ItemID = &s
		}
		if e.MatchID != nil {
			s := e.MatchID.String()
			resp.MatchID = &s
		}
		if len(e.Payload) > 0 {
			resp.Payload = json.RawMessage(e.Payload)
		}
		out = append(out, resp)
	}
	return out
}
