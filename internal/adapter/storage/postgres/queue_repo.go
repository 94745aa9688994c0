package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"p2p-match-engine/internal/core/domain"
	"p2p-match-engine/internal/core/ports"
	"p2p-match-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// QueueRepo implements ports.QueueRepository.
type QueueRepo struct {
	pool Pool
}

// NewQueueRepo creates a new QueueRepo.
func NewQueueRepo(pool Pool) *QueueRepo {
	return &QueueRepo{pool: pool}
}

const queueItemColumns = `id, kind, customer_id, amount, payment_type, priority, state,
	enqueued_at, channel_ref, notes, version, updated_at`

// Create inserts a new queue item.
func (r *QueueRepo) Create(ctx context.Context, item *domain.QueueItem) error {
	query := `INSERT INTO queue_items (id, kind, customer_id, amount, payment_type, priority, state,
		enqueued_at, channel_ref, notes, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		item.ID, item.Kind, item.CustomerID, item.Amount, item.PaymentType,
		item.Priority, item.State, item.EnqueuedAt, item.ChannelRef,
		item.Notes, item.Version, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

// GetByID fetches a queue item by UUID. Returns nil, nil when missing.
func (r *QueueRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM queue_items WHERE id = $1`, queueItemColumns)
	return r.scanItem(r.pool.QueryRow(ctx, query, id))
}

// ListPending returns the pending items of one queue in serving order:
// priority first, then age.
func (r *QueueRepo) ListPending(ctx context.Context, kind domain.ItemKind) ([]domain.QueueItem, error) {
	query := fmt.Sprintf(`SELECT %s FROM queue_items
		WHERE kind = $1 AND state = $2
		ORDER BY priority DESC, enqueued_at ASC`, queueItemColumns)

	rows, err := r.pool.Query(ctx, query, kind, domain.ItemStatePending)
	if err != nil {
		return nil, fmt.Errorf("list pending items: %w", err)
	}
	defer rows.Close()
	return r.collectItems(rows)
}

// List fetches queue items with filtering.
func (r *QueueRepo) List(ctx context.Context, params ports.QueueListParams) ([]domain.QueueItem, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.PaymentType != nil {
		conditions = append(conditions, fmt.Sprintf("payment_type = $%d", argIdx))
		args = append(args, *params.PaymentType)
		argIdx++
	}
	if params.State != nil {
		conditions = append(conditions, fmt.Sprintf("state = $%d", argIdx))
		args = append(args, *params.State)
		argIdx++
	}
	if params.MinAmount != nil {
		conditions = append(conditions, fmt.Sprintf("amount >= $%d", argIdx))
		args = append(args, *params.MinAmount)
		argIdx++
	}
	if params.MaxAmount != nil {
		conditions = append(conditions, fmt.Sprintf("amount <= $%d", argIdx))
		args = append(args, *params.MaxAmount)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = 500
	}

	query := fmt.Sprintf(`SELECT %s FROM queue_items %s
		ORDER BY priority DESC, enqueued_at ASC LIMIT $%d`, queueItemColumns, where, argIdx)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()
	return r.collectItems(rows)
}

// UpdateState transitions an item with an optimistic version check. Zero
// rows affected means the stamp went stale (or the row vanished) between
// the caller's read and this write; both surface as a version conflict so
// the caller re-reads.
func (r *QueueRepo) UpdateState(ctx context.Context, tx pgx.Tx, id uuid.UUID, state domain.ItemState, expectedVersion int64) error {
	query := `UPDATE queue_items SET state = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`

	var ex execer = r.pool
	if tx != nil {
		ex = tx
	}
	tag, err := ex.Exec(ctx, query, state, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("update item state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrVersionConflict()
	}
	return nil
}

// UpdateNotes sets the operator notes with an optimistic version check.
func (r *QueueRepo) UpdateNotes(ctx context.Context, id uuid.UUID, notes *string, expectedVersion int64) error {
	query := `UPDATE queue_items SET notes = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4`

	tag, err := r.pool.Exec(ctx, query, notes, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("update item notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrVersionConflict()
	}
	return nil
}

// GetStats retrieves queue aggregates in two queries: global counters plus
// a per-payment-type breakdown of active items.
func (r *QueueRepo) GetStats(ctx context.Context) (*ports.QueueStats, error) {
	query := `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE kind = 'WITHDRAWAL' AND state = 'PENDING') AS pending_withdrawals,
		COUNT(*) FILTER (WHERE kind = 'DEPOSIT' AND state = 'PENDING') AS pending_deposits,
		COUNT(*) FILTER (WHERE state = 'COMPLETED') AS completed,
		COUNT(*) FILTER (WHERE state = 'REJECTED') AS rejected,
		COUNT(*) FILTER (WHERE state = 'CANCELLED') AS cancelled,
		COALESCE(SUM(EXTRACT(EPOCH FROM (NOW() - enqueued_at))) FILTER (WHERE state IN ('PENDING','MATCHED','PROCESSING')), 0) AS active_wait,
		COUNT(*) FILTER (WHERE state IN ('PENDING','MATCHED','PROCESSING')) AS active_items,
		(SELECT COUNT(*) FROM matches WHERE state IN ('PROPOSED','APPROVED')) AS matched_pairs
		FROM queue_items`

	stats := &ports.QueueStats{ByPaymentType: make(map[domain.PaymentType]int64)}
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.TotalItems, &stats.PendingWithdrawals, &stats.PendingDeposits,
		&stats.Completed, &stats.Rejected, &stats.Cancelled,
		&stats.ActiveWaitSeconds, &stats.ActiveItems, &stats.MatchedPairs,
	)
	if err != nil {
		return nil, fmt.Errorf("get queue stats: %w", err)
	}

	breakdown := `SELECT payment_type, COUNT(*) FROM queue_items
		WHERE state IN ('PENDING','MATCHED','PROCESSING') GROUP BY payment_type`
	rows, err := r.pool.Query(ctx, breakdown)
	if err != nil {
		return nil, fmt.Errorf("get payment type breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var pt domain.PaymentType
		var count int64
		if err := rows.Scan(&pt, &count); err != nil {
			return nil, fmt.Errorf("scan payment type row: %w", err)
		}
		stats.ByPaymentType[pt] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment type rows: %w", err)
	}
	return stats, nil
}

func (r *QueueRepo) collectItems(rows pgx.Rows) ([]domain.QueueItem, error) {
	var items []domain.QueueItem
	for rows.Next() {
		item := domain.QueueItem{}
		err := rows.Scan(
			&item.ID, &item.Kind, &item.CustomerID, &item.Amount, &item.PaymentType,
			&item.Priority, &item.State, &item.EnqueuedAt, &item.ChannelRef,
			&item.Notes, &item.Version, &item.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan queue item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue item rows: %w", err)
	}
	return items, nil
}

// scanItem is a helper to scan a single row into a QueueItem.
func (r *QueueRepo) scanItem(row pgx.Row) (*domain.QueueItem, error) {
	item := &domain.QueueItem{}
	err := row.Scan(
		&item.ID, &item.Kind, &item.CustomerID, &item.Amount, &item.PaymentType,
		&item.Priority, &item.State, &item.EnqueuedAt, &item.ChannelRef,
		&item.Notes, &item.Version, &item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan queue item: %w", err)
	}
	return item, nil
}
