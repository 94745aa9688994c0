package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType classifies entries in the audit trail.
type EventType string

const (
	EventItemAdded          EventType = "ITEM_ADDED"
	EventMatchProposed      EventType = "MATCH_PROPOSED"
	EventMatchApproved      EventType = "MATCH_APPROVED"
	EventMatchRejected      EventType = "MATCH_REJECTED"
	EventMatchCompleted     EventType = "MATCH_COMPLETED"
	EventItemCancelled      EventType = "ITEM_CANCELLED"
	EventNotificationFailed EventType = "NOTIFICATION_FAILED"
)

// HistoryEntry is one record of the append-only audit trail. Entries are
// never updated or deleted. Exactly one of ItemID/MatchID may be nil;
// pair events carry the match id.
type HistoryEntry struct {
	ID        uuid.UUID       `json:"id"`
	ItemID    *uuid.UUID      `json:"item_id,omitempty"`
	MatchID   *uuid.UUID      `json:"match_id,omitempty"`
	EventType EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewItemHistory builds an entry scoped to a single queue item. The payload
// is a best-effort snapshot; marshal failures degrade to an empty payload
// rather than losing the event.
func NewItemHistory(itemID uuid.UUID, event EventType, payload any) *HistoryEntry {
	e := &HistoryEntry{
		ID:        uuid.New(),
		ItemID:    &itemID,
		EventType: event,
		CreatedAt: time.Now().UTC(),
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			e.Payload = raw
		}
	}
	return e
}

// NewMatchHistory builds an entry scoped to a match.
func NewMatchHistory(matchID uuid.UUID, event EventType, payload any) *HistoryEntry {
	e := &HistoryEntry{
		ID:        uuid.New(),
		MatchID:   &matchID,
		EventType: event,
		CreatedAt: time.Now().UTC(),
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			e.Payload = raw
		}
	}
	return e
}
