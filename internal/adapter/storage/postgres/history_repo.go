package postgres

import (
	"context"
	"fmt"

	"p2p-match-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// HistoryRepo implements ports.HistoryRepository. The table is append-only:
// there is deliberately no update or delete path.
type HistoryRepo struct {
	pool Pool
}

// NewHistoryRepo creates a new HistoryRepo.
func NewHistoryRepo(pool Pool) *HistoryRepo {
	return &HistoryRepo{pool: pool}
}

const historyColumns = `id, item_id, match_id, event_type, payload, created_at`

// Append inserts an audit entry. tx may be nil for writes outside a store
// transaction (e.g. notification failures).
func (r *HistoryRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.HistoryEntry) error {
	query := `INSERT INTO history_entries (id, item_id, match_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	var ex execer = r.pool
	if tx != nil {
		ex = tx
	}
	_, err := ex.Exec(ctx, query,
		e.ID, e.ItemID, e.MatchID, e.EventType, e.Payload, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// ListByItem returns the item's audit trail ordered by timestamp.
func (r *HistoryRepo) ListByItem(ctx context.Context, itemID uuid.UUID) ([]domain.HistoryEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM history_entries WHERE item_id = $1 ORDER BY created_at ASC`, historyColumns)
	rows, err := r.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("list history by item: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

// ListByMatch returns the match's audit trail ordered by timestamp.
func (r *HistoryRepo) ListByMatch(ctx context.Context, matchID uuid.UUID) ([]domain.HistoryEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM history_entries WHERE match_id = $1 ORDER BY created_at ASC`, historyColumns)
	rows, err := r.pool.Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("list history by match: %w", err)
	}
	defer rows.Close()
	return r.collect(rows)
}

func (r *HistoryRepo) collect(rows pgx.Rows) ([]domain.HistoryEntry, error) {
	var entries []domain.HistoryEntry
	for rows.Next() {
		e := domain.HistoryEntry{}
		if err := rows.Scan(&e.ID, &e.ItemID, &e.MatchID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}
