package domain

import (
	"time"

	"github.com/google/uuid"
)

// MatchState is the lifecycle state of a proposed pairing.
type MatchState string

const (
	MatchStateProposed MatchState = "PROPOSED"
	MatchStateApproved MatchState = "APPROVED"
	MatchStateRejected MatchState = "REJECTED"
)

// IsValid reports whether s is a known match state.
func (s MatchState) IsValid() bool {
	switch s {
	case MatchStateProposed, MatchStateApproved, MatchStateRejected:
		return true
	}
	return false
}

// Match pairs one withdrawal with one deposit. Score is computed once at
// proposal time and never changes; it is kept for algorithm tuning even
// after rejection.
type Match struct {
	ID           uuid.UUID  `json:"id"`
	WithdrawalID uuid.UUID  `json:"withdrawal_id"`
	DepositID    uuid.UUID  `json:"deposit_id"`
	Score        int        `json:"score"`
	State        MatchState `json:"state"`
	RejectReason *string    `json:"reject_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	Version      int64      `json:"-"` // optimistic concurrency stamp
}

// IsActive reports whether the match still binds its two items.
// A rejected match releases both items back to their queues.
func (m *Match) IsActive() bool {
	return m.State != MatchStateRejected
}

// IsResolved reports whether an operator has acted on the proposal.
func (m *Match) IsResolved() bool {
	return m.State != MatchStateProposed
}
