package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"p2p-match-engine/internal/core/domain"
	"p2p-match-engine/internal/core/ports"
	"p2p-match-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedItem(t *testing.T, s *Store, kind domain.ItemKind, priority int, enqueuedAt time.Time) *domain.QueueItem {
	t.Helper()
	item := &domain.QueueItem{
		ID:          uuid.New(),
		Kind:        kind,
		CustomerID:  "cust-" + uuid.NewString()[:8],
		Amount:      decimal.NewFromInt(500),
		PaymentType: domain.PaymentTypeBankTransfer,
		Priority:    priority,
		State:       domain.ItemStatePending,
		EnqueuedAt:  enqueuedAt,
		ChannelRef:  "chat-1",
		Version:     1,
		UpdatedAt:   enqueuedAt,
	}
	require.NoError(t, s.QueueRepo().Create(context.Background(), item))
	return item
}

func TestStore_GetByID_ReturnsCopy(t *testing.T) {
	s := NewStore()
	item := seedItem(t, s, domain.ItemKindWithdrawal, 0, time.Now().UTC())

	got, err := s.QueueRepo().GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	// Mutating the returned item must not leak into the store.
	got.State = domain.ItemStateCancelled
	again, err := s.QueueRepo().GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatePending, again.State)
}

func TestStore_GetByID_MissingIsNilNil(t *testing.T) {
	s := NewStore()

	got, err := s.QueueRepo().GetByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_ListPending_ServingOrder(t *testing.T) {
	s := NewStore()
	now := time.Now().UTC()

	older := seedItem(t, s, domain.ItemKindWithdrawal, 0, now.Add(-10*time.Minute))
	newer := seedItem(t, s, domain.ItemKindWithdrawal, 0, now.Add(-1*time.Minute))
	urgent := seedItem(t, s, domain.ItemKindWithdrawal, 100, now)
	seedItem(t, s, domain.ItemKindDeposit, 0, now) // other queue

	items, err := s.QueueRepo().ListPending(context.Background(), domain.ItemKindWithdrawal)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, urgent.ID, items[0].ID, "priority beats age")
	assert.Equal(t, older.ID, items[1].ID)
	assert.Equal(t, newer.ID, items[2].ID)
}

func TestStore_List_FiltersAndLimit(t *testing.T) {
	s := NewStore()
	now := time.Now().UTC()
	seedItem(t, s, domain.ItemKindWithdrawal, 0, now.Add(-2*time.Minute))
	seedItem(t, s, domain.ItemKindWithdrawal, 0, now.Add(-1*time.Minute))
	seedItem(t, s, domain.ItemKindDeposit, 0, now)

	kind := domain.ItemKindWithdrawal
	items, err := s.QueueRepo().List(context.Background(), ports.QueueListParams{Kind: &kind, Limit: 1})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.ItemKindWithdrawal, items[0].Kind)
}

func TestStore_UpdateState_VersionConflict(t *testing.T) {
	s := NewStore()
	item := seedItem(t, s, domain.ItemKindWithdrawal, 0, time.Now().UTC())

	err := s.QueueRepo().UpdateState(context.Background(), nil, item.ID, domain.ItemStateMatched, 99)
	require.Error(t, err)
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "QUE_004", appErr.Code)

	// The stamp matters even when the row exists with a different version.
	require.NoError(t, s.QueueRepo().UpdateState(context.Background(), nil, item.ID, domain.ItemStateMatched, 1))
	got, err := s.QueueRepo().GetByID(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStateMatched, got.State)
	assert.Equal(t, int64(2), got.Version)
}

func TestStore_TxCommitAppliesBufferedWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	withdrawal := seedItem(t, s, domain.ItemKindWithdrawal, 0, time.Now().UTC())
	deposit := seedItem(t, s, domain.ItemKindDeposit, 0, time.Now().UTC())

	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	m := &domain.Match{
		ID:           uuid.New(),
		WithdrawalID: withdrawal.ID,
		DepositID:    deposit.ID,
		Score:        75,
		State:        domain.MatchStateProposed,
		CreatedAt:    time.Now().UTC(),
		Version:      1,
	}
	require.NoError(t, s.MatchRepo().Create(ctx, tx, m))
	require.NoError(t, s.QueueRepo().UpdateState(ctx, tx, withdrawal.ID, domain.ItemStateMatched, 1))
	require.NoError(t, s.QueueRepo().UpdateState(ctx, tx, deposit.ID, domain.ItemStateMatched, 1))
	require.NoError(t, tx.Commit(ctx))

	got, err := s.MatchRepo().GetByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	w, err := s.QueueRepo().GetByID(ctx, withdrawal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStateMatched, w.State)
	d, err := s.QueueRepo().GetByID(ctx, deposit.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStateMatched, d.State)
}

func TestStore_TxRollbackDiscardsBufferedWrites(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	item := seedItem(t, s, domain.ItemKindWithdrawal, 0, time.Now().UTC())

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, s.QueueRepo().UpdateState(ctx, tx, item.ID, domain.ItemStateMatched, 1))
	require.NoError(t, tx.Rollback(ctx))

	got, err := s.QueueRepo().GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemStatePending, got.State)
	assert.Equal(t, int64(1), got.Version)
}

func TestStore_TxRollbackAfterCommitIsNoOp(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, tx.Rollback(ctx))
}

func TestStore_ActiveMatchLookups(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	withdrawal := seedItem(t, s, domain.ItemKindWithdrawal, 0, time.Now().UTC())
	deposit := seedItem(t, s, domain.ItemKindDeposit, 0, time.Now().UTC())

	m := &domain.Match{
		ID:           uuid.New(),
		WithdrawalID: withdrawal.ID,
		DepositID:    deposit.ID,
		Score:        75,
		State:        domain.MatchStateProposed,
		CreatedAt:    time.Now().UTC(),
		Version:      1,
	}
	require.NoError(t, s.MatchRepo().Create(ctx, nil, m))

	exists, err := s.MatchRepo().ActiveMatchExists(ctx, deposit.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := s.MatchRepo().GetActiveByItem(ctx, withdrawal.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, m.ID, got.ID)

	// A rejected match no longer blocks either side.
	require.NoError(t, s.MatchRepo().Resolve(ctx, nil, m.ID, domain.MatchStateRejected, nil, 1))
	exists, err = s.MatchRepo().ActiveMatchExists(ctx, deposit.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestStore_ResolveStampsResolvedAt(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	m := &domain.Match{
		ID:           uuid.New(),
		WithdrawalID: uuid.New(),
		DepositID:    uuid.New(),
		Score:        50,
		State:        domain.MatchStateProposed,
		CreatedAt:    time.Now().UTC(),
		Version:      1,
	}
	require.NoError(t, s.MatchRepo().Create(ctx, nil, m))

	reason := "operator declined"
	require.NoError(t, s.MatchRepo().Resolve(ctx, nil, m.ID, domain.MatchStateRejected, &reason, 1))

	got, err := s.MatchRepo().GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchStateRejected, got.State)
	require.NotNil(t, got.RejectReason)
	assert.Equal(t, reason, *got.RejectReason)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, int64(2), got.Version)
}

func TestStore_HistoryIsScopedPerSubject(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	itemID := uuid.New()
	matchID := uuid.New()

	require.NoError(t, s.HistoryRepo().Append(ctx, nil, domain.NewItemHistory(itemID, domain.EventItemAdded, nil)))
	require.NoError(t, s.HistoryRepo().Append(ctx, nil, domain.NewMatchHistory(matchID, domain.EventMatchProposed, nil)))

	byItem, err := s.HistoryRepo().ListByItem(ctx, itemID)
	require.NoError(t, err)
	require.Len(t, byItem, 1)
	assert.Equal(t, domain.EventItemAdded, byItem[0].EventType)

	byMatch, err := s.HistoryRepo().ListByMatch(ctx, matchID)
	require.NoError(t, err)
	require.Len(t, byMatch, 1)
	assert.Equal(t, domain.EventMatchProposed, byMatch[0].EventType)
}

func TestStore_GetStats(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	now := time.Now().UTC()

	seedItem(t, s, domain.ItemKindWithdrawal, 0, now.Add(-time.Minute))
	seedItem(t, s, domain.ItemKindDeposit, 0, now.Add(-time.Minute))
	done := seedItem(t, s, domain.ItemKindWithdrawal, 0, now.Add(-time.Hour))
	require.NoError(t, s.QueueRepo().UpdateState(ctx, nil, done.ID, domain.ItemStateMatched, 1))
	require.NoError(t, s.QueueRepo().UpdateState(ctx, nil, done.ID, domain.ItemStateProcessing, 2))
	require.NoError(t, s.QueueRepo().UpdateState(ctx, nil, done.ID, domain.ItemStateCompleted, 3))

	stats, err := s.QueueRepo().GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalItems)
	assert.Equal(t, int64(1), stats.PendingWithdrawals)
	assert.Equal(t, int64(1), stats.PendingDeposits)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(2), stats.ActiveItems)
	assert.Positive(t, stats.ActiveWaitSeconds)
	assert.Equal(t, int64(2), stats.ByPaymentType[domain.PaymentTypeBankTransfer])
}

func TestStore_HealthChecker(t *testing.T) {
	s := NewStore()
	assert.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, "memory", s.Name())
}
