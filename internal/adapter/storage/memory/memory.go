// Package memory provides an in-process queue store. It implements the
// same repository ports as the postgres adapter and is used for local
// development and tests. A single mutex serializes writers; transactions
// buffer their mutations and apply them on commit, so pair transitions
// stay atomic.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"p2p-match-engine/internal/core/domain"
	"p2p-match-engine/internal/core/ports"
	"p2p-match-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store holds both queues, the match table and the history log in memory.
type Store struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*domain.QueueItem
	matches map[uuid.UUID]*domain.Match
	history []domain.HistoryEntry
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		items:   make(map[uuid.UUID]*domain.QueueItem),
		matches: make(map[uuid.UUID]*domain.Match),
	}
}

// memTx buffers mutations while holding the store lock; Commit applies
// them, Rollback discards. Version checks run at call time, which is safe
// because the lock is held for the whole transaction.
type memTx struct {
	pgx.Tx
	store   *Store
	pending []func()
	done    bool
}

// Begin acquires the store lock for the lifetime of the transaction.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	s.mu.Lock()
	return &memTx{store: s}, nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	for _, apply := range t.pending {
		apply()
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil // rollback after commit is a no-op, mirroring the defer pattern
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

// lockUnless acquires the store lock except when the caller already holds
// it through an open transaction.
func (s *Store) lockUnless(tx pgx.Tx) func() {
	if tx != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func asMemTx(tx pgx.Tx) *memTx {
	if tx == nil {
		return nil
	}
	mt, _ := tx.(*memTx)
	return mt
}

// The repository ports overlap in method names, so the store exposes one
// thin facade per port, all sharing the same data and lock.

// QueueRepo returns the ports.QueueRepository view of the store.
func (s *Store) QueueRepo() ports.QueueRepository { return &queueRepo{s} }

// MatchRepo returns the ports.MatchRepository view of the store.
func (s *Store) MatchRepo() ports.MatchRepository { return &matchRepo{s} }

// HistoryRepo returns the ports.HistoryRepository view of the store.
func (s *Store) HistoryRepo() ports.HistoryRepository { return &historyRepo{s} }

type queueRepo struct{ s *Store }

func (r *queueRepo) Create(ctx context.Context, item *domain.QueueItem) error {
	return r.s.createItem(ctx, item)
}
func (r *queueRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error) {
	return r.s.getItem(ctx, id)
}
func (r *queueRepo) ListPending(ctx context.Context, kind domain.ItemKind) ([]domain.QueueItem, error) {
	return r.s.listPending(ctx, kind)
}
func (r *queueRepo) List(ctx context.Context, params ports.QueueListParams) ([]domain.QueueItem, error) {
	return r.s.listItems(ctx, params)
}
func (r *queueRepo) UpdateState(ctx context.Context, tx pgx.Tx, id uuid.UUID, state domain.ItemState, expectedVersion int64) error {
	return r.s.updateItemState(ctx, tx, id, state, expectedVersion)
}
func (r *queueRepo) UpdateNotes(ctx context.Context, id uuid.UUID, notes *string, expectedVersion int64) error {
	return r.s.updateItemNotes(ctx, id, notes, expectedVersion)
}
func (r *queueRepo) GetStats(ctx context.Context) (*ports.QueueStats, error) {
	return r.s.getStats(ctx)
}

type matchRepo struct{ s *Store }

func (r *matchRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.Match) error {
	return r.s.createMatch(ctx, tx, m)
}
func (r *matchRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	return r.s.getMatch(ctx, id)
}
func (r *matchRepo) List(ctx context.Context, state *domain.MatchState) ([]domain.Match, error) {
	return r.s.listMatches(ctx, state)
}
func (r *matchRepo) Resolve(ctx context.Context, tx pgx.Tx, id uuid.UUID, state domain.MatchState, reason *string, expectedVersion int64) error {
	return r.s.resolveMatch(ctx, tx, id, state, reason, expectedVersion)
}
func (r *matchRepo) ActiveMatchExists(ctx context.Context, itemID uuid.UUID) (bool, error) {
	return r.s.activeMatchExists(ctx, itemID)
}
func (r *matchRepo) GetActiveByItem(ctx context.Context, itemID uuid.UUID) (*domain.Match, error) {
	return r.s.getActiveByItem(ctx, itemID)
}

type historyRepo struct{ s *Store }

func (r *historyRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.HistoryEntry) error {
	return r.s.appendHistory(ctx, tx, e)
}
func (r *historyRepo) ListByItem(ctx context.Context, itemID uuid.UUID) ([]domain.HistoryEntry, error) {
	return r.s.listHistoryByItem(ctx, itemID)
}
func (r *historyRepo) ListByMatch(ctx context.Context, matchID uuid.UUID) ([]domain.HistoryEntry, error) {
	return r.s.listHistoryByMatch(ctx, matchID)
}

// --- queue items ---

func (s *Store) createItem(ctx context.Context, item *domain.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

func (s *Store) getItem(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (s *Store) listPending(ctx context.Context, kind domain.ItemKind) ([]domain.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.QueueItem
	for _, item := range s.items {
		if item.Kind == kind && item.State == domain.ItemStatePending {
			out = append(out, *item)
		}
	}
	sortServingOrder(out)
	return out, nil
}

func (s *Store) listItems(ctx context.Context, params ports.QueueListParams) ([]domain.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.QueueItem
	for _, item := range s.items {
		if !matchesFilter(item, params) {
			continue
		}
		out = append(out, *item)
	}
	sortServingOrder(out)
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (s *Store) updateItemState(ctx context.Context, tx pgx.Tx, id uuid.UUID, state domain.ItemState, expectedVersion int64) error {
	unlock := s.lockUnless(tx)
	defer unlock()

	item, ok := s.items[id]
	if !ok || item.Version != expectedVersion {
		return apperror.ErrVersionConflict()
	}

	apply := func() {
		item.State = state
		item.Version++
		item.UpdatedAt = time.Now().UTC()
	}
	if mt := asMemTx(tx); mt != nil {
		mt.pending = append(mt.pending, apply)
		return nil
	}
	apply()
	return nil
}

func (s *Store) updateItemNotes(ctx context.Context, id uuid.UUID, notes *string, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok || item.Version != expectedVersion {
		return apperror.ErrVersionConflict()
	}
	item.Notes = notes
	item.Version++
	item.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *Store) getStats(ctx context.Context) (*ports.QueueStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	stats := &ports.QueueStats{ByPaymentType: make(map[domain.PaymentType]int64)}
	for _, item := range s.items {
		stats.TotalItems++
		switch item.State {
		case domain.ItemStatePending:
			if item.Kind == domain.ItemKindWithdrawal {
				stats.PendingWithdrawals++
			} else {
				stats.PendingDeposits++
			}
		case domain.ItemStateCompleted:
			stats.Completed++
		case domain.ItemStateRejected:
			stats.Rejected++
		case domain.ItemStateCancelled:
			stats.Cancelled++
		}
		if item.IsActive() {
			stats.ActiveItems++
			stats.ActiveWaitSeconds += now.Sub(item.EnqueuedAt).Seconds()
			stats.ByPaymentType[item.PaymentType]++
		}
	}
	for _, m := range s.matches {
		if m.State != domain.MatchStateRejected {
			stats.MatchedPairs++
		}
	}
	return stats, nil
}

// --- ports.MatchRepository ---

func (s *Store) createMatch(ctx context.Context, tx pgx.Tx, m *domain.Match) error {
	unlock := s.lockUnless(tx)
	defer unlock()

	cp := *m
	apply := func() { s.matches[cp.ID] = &cp }
	if mt := asMemTx(tx); mt != nil {
		mt.pending = append(mt.pending, apply)
		return nil
	}
	apply()
	return nil
}

func (s *Store) getMatch(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *Store) listMatches(ctx context.Context, state *domain.MatchState) ([]domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Match
	for _, m := range s.matches {
		if state != nil && m.State != *state {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) resolveMatch(ctx context.Context, tx pgx.Tx, id uuid.UUID, state domain.MatchState, reason *string, expectedVersion int64) error {
	unlock := s.lockUnless(tx)
	defer unlock()

	m, ok := s.matches[id]
	if !ok || m.Version != expectedVersion {
		return apperror.ErrVersionConflict()
	}

	apply := func() {
		now := time.Now().UTC()
		m.State = state
		m.RejectReason = reason
		m.ResolvedAt = &now
		m.Version++
	}
	if mt := asMemTx(tx); mt != nil {
		mt.pending = append(mt.pending, apply)
		return nil
	}
	apply()
	return nil
}

func (s *Store) activeMatchExists(ctx context.Context, itemID uuid.UUID) (bool, error) {
	m, err := s.getActiveByItem(ctx, itemID)
	return m != nil, err
}

func (s *Store) getActiveByItem(ctx context.Context, itemID uuid.UUID) (*domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.State == domain.MatchStateRejected {
			continue
		}
		if m.WithdrawalID == itemID || m.DepositID == itemID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

// --- ports.HistoryRepository ---

func (s *Store) appendHistory(ctx context.Context, tx pgx.Tx, e *domain.HistoryEntry) error {
	unlock := s.lockUnless(tx)
	defer unlock()

	cp := *e
	apply := func() { s.history = append(s.history, cp) }
	if mt := asMemTx(tx); mt != nil {
		mt.pending = append(mt.pending, apply)
		return nil
	}
	apply()
	return nil
}

func (s *Store) listHistoryByItem(ctx context.Context, itemID uuid.UUID) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.HistoryEntry
	for _, e := range s.history {
		if e.ItemID != nil && *e.ItemID == itemID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) listHistoryByMatch(ctx context.Context, matchID uuid.UUID) ([]domain.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.HistoryEntry
	for _, e := range s.history {
		if e.MatchID != nil && *e.MatchID == matchID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- ports.HealthChecker ---

// Ping always succeeds; the store lives in-process.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Name returns the dependency name.
func (s *Store) Name() string { return "memory" }

// --- helpers ---

func sortServingOrder(items []domain.QueueItem) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority > items[j].Priority
		}
		return items[i].EnqueuedAt.Before(items[j].EnqueuedAt)
	})
}

func matchesFilter(item *domain.QueueItem, params ports.QueueListParams) bool {
	if params.Kind != nil && item.Kind != *params.Kind {
		return false
	}
	if params.PaymentType != nil && item.PaymentType != *params.PaymentType {
		return false
	}
	if params.State != nil && item.State != *params.State {
		return false
	}
	if params.MinAmount != nil && item.Amount.LessThan(*params.MinAmount) {
		return false
	}
	if params.MaxAmount != nil && item.Amount.GreaterThan(*params.MaxAmount) {
		return false
	}
	return true
}
