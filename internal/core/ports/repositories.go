package ports

import (
	"context"

	"p2p-match-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// QueueRepository defines persistence operations for queue items.
// Lookups return nil, nil when the row does not exist (the service layer
// turns that into a NotFound error). State mutations carry the version
// stamp read earlier; a stale stamp fails with apperror's version conflict
// so the caller can re-read and retry.
type QueueRepository interface {
	Create(ctx context.Context, item *domain.QueueItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error)
	// ListPending returns the pending items of one queue, ordered by
	// priority (desc) then enqueued_at (asc). This is the matching snapshot.
	ListPending(ctx context.Context, kind domain.ItemKind) ([]domain.QueueItem, error)
	List(ctx context.Context, params QueueListParams) ([]domain.QueueItem, error)
	// UpdateState transitions one item inside a store transaction.
	// expectedVersion is the optimistic stamp; on success the stored
	// version is incremented.
	UpdateState(ctx context.Context, tx pgx.Tx, id uuid.UUID, state domain.ItemState, expectedVersion int64) error
	UpdateNotes(ctx context.Context, id uuid.UUID, notes *string, expectedVersion int64) error
	GetStats(ctx context.Context) (*QueueStats, error)
}

// QueueListParams holds the filter set for queue listings. Nil fields are
// not applied.
type QueueListParams struct {
	Kind        *domain.ItemKind
	PaymentType *domain.PaymentType
	State       *domain.ItemState
	MinAmount   *decimal.Decimal
	MaxAmount   *decimal.Decimal
	Limit       int
}

// QueueStats holds store-side aggregates for the stats service.
type QueueStats struct {
	TotalItems         int64
	PendingWithdrawals int64
	PendingDeposits    int64
	MatchedPairs       int64 // matches in PROPOSED or APPROVED state
	Completed          int64
	Rejected           int64
	Cancelled          int64
	// ActiveWaitSeconds is the summed age of all active items, used to
	// derive the average wait without shipping every row.
	ActiveWaitSeconds float64
	ActiveItems       int64
	ByPaymentType     map[domain.PaymentType]int64
}

// MatchRepository defines persistence operations for matches.
type MatchRepository interface {
	Create(ctx context.Context, tx pgx.Tx, match *domain.Match) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error)
	List(ctx context.Context, state *domain.MatchState) ([]domain.Match, error)
	// Resolve moves a match out of PROPOSED (or marks it rejected on
	// cancellation) with an optimistic version check.
	Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, state domain.MatchState, reason *string, expectedVersion int64) error
	// ActiveMatchExists reports whether any non-rejected match references
	// the item. Guards the one-active-match-per-item invariant.
	ActiveMatchExists(ctx context.Context, itemID uuid.UUID) (bool, error)
	// GetActiveByItem returns the non-rejected match referencing the item,
	// or nil, nil.
	GetActiveByItem(ctx context.Context, itemID uuid.UUID) (*domain.Match, error)
}

// HistoryRepository defines the append-only audit trail. tx may be nil for
// writes outside a store transaction (e.g. notification failures).
type HistoryRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.HistoryEntry) error
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]domain.HistoryEntry, error)
	ListByMatch(ctx context.Context, matchID uuid.UUID) ([]domain.HistoryEntry, error)
}

// DBTransactor provides store transaction management. The memory adapter
// returns a no-op transaction and relies on its own locking.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
