package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"p2p-match-engine/internal/core/domain"
	"p2p-match-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatch() *domain.Match {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Match{
		ID:           uuid.New(),
		WithdrawalID: uuid.New(),
		DepositID:    uuid.New(),
		Score:        75,
		State:        domain.MatchStateProposed,
		CreatedAt:    now,
		Version:      1,
	}
}

func matchTestColumns() []string {
	return []string{"id", "withdrawal_id", "deposit_id", "score", "state", "reject_reason",
		"created_at", "resolved_at", "version"}
}

func matchRow(m *domain.Match) *pgxmock.Rows {
	return pgxmock.NewRows(matchTestColumns()).AddRow(
		m.ID, m.WithdrawalID, m.DepositID, m.Score, m.State,
		m.RejectReason, m.CreatedAt, m.ResolvedAt, m.Version,
	)
}

func TestMatchRepo_Create_InTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMatchRepo(mock)
	m := newTestMatch()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO matches").
		WithArgs(
			m.ID, m.WithdrawalID, m.DepositID, m.Score, m.State,
			m.RejectReason, m.CreatedAt, m.ResolvedAt, m.Version,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	dbTx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), dbTx, m)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMatchRepo(mock)
	m := newTestMatch()

	mock.ExpectQuery("SELECT .+ FROM matches WHERE id").
		WithArgs(m.ID).
		WillReturnRows(matchRow(m))

	result, err := repo.GetByID(context.Background(), m.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, m.ID, result.ID)
	assert.Equal(t, m.Score, result.Score)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMatchRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM matches WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(matchTestColumns()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepo_List_FilteredByState(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMatchRepo(mock)
	m := newTestMatch()
	state := domain.MatchStateProposed

	mock.ExpectQuery("SELECT .+ FROM matches WHERE state .+ ORDER BY created_at DESC").
		WithArgs(state).
		WillReturnRows(matchRow(m))

	matches, err := repo.List(context.Background(), &state)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, m.ID, matches[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepo_Resolve(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMatchRepo(mock)
	id := uuid.New()
	reason := "amounts disputed"

	mock.ExpectExec("UPDATE matches SET state").
		WithArgs(domain.MatchStateRejected, &reason, pgxmock.AnyArg(), id, int64(1)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.Resolve(context.Background(), nil, id, domain.MatchStateRejected, &reason, 1)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepo_Resolve_VersionConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMatchRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE matches SET state").
		WithArgs(domain.MatchStateApproved, (*string)(nil), pgxmock.AnyArg(), id, int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.Resolve(context.Background(), nil, id, domain.MatchStateApproved, nil, 2)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "QUE_004", appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepo_ActiveMatchExists(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMatchRepo(mock)
	itemID := uuid.New()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(itemID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ActiveMatchExists(context.Background(), itemID)
	assert.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMatchRepo_GetActiveByItem_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewMatchRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM matches").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(matchTestColumns()))

	result, err := repo.GetActiveByItem(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}
