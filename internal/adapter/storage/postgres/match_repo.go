package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"p2p-match-engine/internal/core/domain"
	"p2p-match-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// MatchRepo implements ports.MatchRepository.
type MatchRepo struct {
	pool Pool
}

// NewMatchRepo creates a new MatchRepo.
func NewMatchRepo(pool Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

const matchColumns = `id, withdrawal_id, deposit_id, score, state, reject_reason,
	created_at, resolved_at, version`

// Create inserts a new match within a database transaction.
func (r *MatchRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.Match) error {
	query := `INSERT INTO matches (id, withdrawal_id, deposit_id, score, state, reject_reason,
		created_at, resolved_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var ex execer = r.pool
	if tx != nil {
		ex = tx
	}
	_, err := ex.Exec(ctx, query,
		m.ID, m.WithdrawalID, m.DepositID, m.Score, m.State,
		m.RejectReason, m.CreatedAt, m.ResolvedAt, m.Version,
	)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// GetByID fetches a match by UUID. Returns nil, nil when missing.
func (r *MatchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE id = $1`, matchColumns)
	return r.scanMatch(r.pool.QueryRow(ctx, query, id))
}

// List fetches matches, newest first, optionally filtered by state.
func (r *MatchRepo) List(ctx context.Context, state *domain.MatchState) ([]domain.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches ORDER BY created_at DESC`, matchColumns)
	args := []any{}
	if state != nil {
		query = fmt.Sprintf(`SELECT %s FROM matches WHERE state = $1 ORDER BY created_at DESC`, matchColumns)
		args = append(args, *state)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		m := domain.Match{}
		err := rows.Scan(
			&m.ID, &m.WithdrawalID, &m.DepositID, &m.Score, &m.State,
			&m.RejectReason, &m.CreatedAt, &m.ResolvedAt, &m.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match rows: %w", err)
	}
	return matches, nil
}

// Resolve moves a match to a resolved state with an optimistic version
// check, stamping resolved_at.
func (r *MatchRepo) Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, state domain.MatchState, reason *string, expectedVersion int64) error {
	query := `UPDATE matches SET state = $1, reject_reason = $2, resolved_at = $3, version = version + 1
		WHERE id = $4 AND version = $5`

	var ex execer = r.pool
	if tx != nil {
		ex = tx
	}
	tag, err := ex.Exec(ctx, query, state, reason, time.Now().UTC(), id, expectedVersion)
	if err != nil {
		return fmt.Errorf("resolve match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.ErrVersionConflict()
	}
	return nil
}

// ActiveMatchExists reports whether any non-rejected match references the
// item on either side.
func (r *MatchRepo) ActiveMatchExists(ctx context.Context, itemID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM matches
		WHERE (withdrawal_id = $1 OR deposit_id = $1) AND state != 'REJECTED')`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, itemID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active match: %w", err)
	}
	return exists, nil
}

// GetActiveByItem returns the non-rejected match referencing the item, or
// nil, nil. The one-active-match invariant makes at most one row possible.
func (r *MatchRepo) GetActiveByItem(ctx context.Context, itemID uuid.UUID) (*domain.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches
		WHERE (withdrawal_id = $1 OR deposit_id = $1) AND state != 'REJECTED'`, matchColumns)
	return r.scanMatch(r.pool.QueryRow(ctx, query, itemID))
}

// scanMatch is a helper to scan a single row into a Match.
func (r *MatchRepo) scanMatch(row pgx.Row) (*domain.Match, error) {
	m := &domain.Match{}
	err := row.Scan(
		&m.ID, &m.WithdrawalID, &m.DepositID, &m.Score, &m.State,
		&m.RejectReason, &m.CreatedAt, &m.ResolvedAt, &m.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan match: %w", err)
	}
	return m, nil
}
