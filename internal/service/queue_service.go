package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"p2p-match-engine/internal/core/domain"
	"p2p-match-engine/internal/core/ports"
	"p2p-match-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxTransitionRetries bounds the optimistic-version retry loop before a
// conflict is surfaced to the caller as retryable.
const maxTransitionRetries = 3

// QueueServiceImpl implements ports.QueueService. It is the single logical
// writer for queue item and match state; all transitions funnel through it
// and are serialized per entity via the store's version stamps.
type QueueServiceImpl struct {
	queueRepo   ports.QueueRepository
	matchRepo   ports.MatchRepository
	historyRepo ports.HistoryRepository
	transactor  ports.DBTransactor
	matcher     *Matcher
	dispatcher  ports.Dispatcher
	log         zerolog.Logger
	now         func() time.Time
}

// NewQueueService creates a new QueueServiceImpl.
func NewQueueService(
	queueRepo ports.QueueRepository,
	matchRepo ports.MatchRepository,
	historyRepo ports.HistoryRepository,
	transactor ports.DBTransactor,
	matcher *Matcher,
	dispatcher ports.Dispatcher,
	log zerolog.Logger,
) *QueueServiceImpl {
	return &QueueServiceImpl{
		queueRepo:   queueRepo,
		matchRepo:   matchRepo,
		historyRepo: historyRepo,
		transactor:  transactor,
		matcher:     matcher,
		dispatcher:  dispatcher,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue validates and persists a new queue item as PENDING, then
// immediately attempts matching against the opposing queue. The returned
// item reflects the post-matching state.
func (s *QueueServiceImpl) Enqueue(ctx context.Context, req ports.EnqueueRequest) (*domain.QueueItem, error) {
	if err := validateEnqueue(req); err != nil {
		return nil, err
	}

	now := s.now()
	item := &domain.QueueItem{
		ID:          uuid.New(),
		Kind:        req.Kind,
		CustomerID:  req.CustomerID,
		Amount:      req.Amount,
		PaymentType: req.PaymentType,
		Priority:    req.Priority,
		State:       domain.ItemStatePending,
		EnqueuedAt:  now,
		ChannelRef:  req.ChannelRef,
		Notes:       req.Notes,
		Version:     1,
		UpdatedAt:   now,
	}

	if err := s.queueRepo.Create(ctx, item); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create queue item: %w", err))
	}
	s.appendHistory(ctx, domain.NewItemHistory(item.ID, domain.EventItemAdded, item))

	s.dispatcher.Publish(ports.NotificationEvent{
		Type:         ports.NotifyItemAdded,
		Item:         item,
		RecipientRef: item.ChannelRef,
	})

	s.log.Info().
		Str("item_id", item.ID.String()).
		Str("kind", string(item.Kind)).
		Str("payment_type", string(item.PaymentType)).
		Str("amount", item.Amount.String()).
		Msg("item enqueued")

	if _, err := s.attemptMatch(ctx, item.ID, uuid.Nil); err != nil {
		// The item is safely queued; a lost matching race only delays the
		// pairing until the next attempt.
		s.log.Warn().Err(err).Str("item_id", item.ID.String()).Msg("matching attempt failed")
	}

	fresh, err := s.queueRepo.GetByID(ctx, item.ID)
	if err != nil || fresh == nil {
		return item, nil
	}
	return fresh, nil
}

// GetItem fetches one queue item.
func (s *QueueServiceImpl) GetItem(ctx context.Context, id uuid.UUID) (*domain.QueueItem, error) {
	item, err := s.queueRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if item == nil {
		return nil, apperror.ErrNotFound("queue item")
	}
	return item, nil
}

// ListItems returns items matching the filter.
func (s *QueueServiceImpl) ListItems(ctx context.Context, params ports.QueueListParams) ([]domain.QueueItem, error) {
	items, err := s.queueRepo.List(ctx, params)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return items, nil
}

// GetMatch fetches one match.
func (s *QueueServiceImpl) GetMatch(ctx context.Context, id uuid.UUID) (*domain.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if match == nil {
		return nil, apperror.ErrNotFound("match")
	}
	return match, nil
}

// ListMatches returns matches, optionally filtered by state.
func (s *QueueServiceImpl) ListMatches(ctx context.Context, state *domain.MatchState) ([]domain.Match, error) {
	matches, err := s.matchRepo.List(ctx, state)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return matches, nil
}

// ApproveMatch transitions a PROPOSED match to APPROVED and both items to
// PROCESSING in one atomic store transaction.
func (s *QueueServiceImpl) ApproveMatch(ctx context.Context, matchID uuid.UUID) (*domain.Match, error) {
	var result *domain.Match
	err := s.withRetries(ctx, func() error {
		match, withdrawal, deposit, err := s.loadPair(ctx, matchID)
		if err != nil {
			return err
		}
		if match.State != domain.MatchStateProposed {
			return apperror.ErrInvalidTransition(string(match.State), string(domain.MatchStateApproved))
		}

		err = s.transitionPair(ctx, match, withdrawal, deposit,
			domain.ItemStateProcessing, domain.MatchStateApproved, nil,
			domain.NewMatchHistory(match.ID, domain.EventMatchApproved, match))
		if err != nil {
			return err
		}

		s.publishPair(ports.NotifyMatchApproved, withdrawal, deposit, match, "")
		s.log.Info().Str("match_id", match.ID.String()).Msg("match approved")
		result = match
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetMatch(ctx, result.ID)
}

// RejectMatch returns both items of a PROPOSED match to PENDING and marks
// the match REJECTED, keeping its score for algorithm tuning. Both items
// are immediately re-offered to the opposing queues, excluding each other.
func (s *QueueServiceImpl) RejectMatch(ctx context.Context, matchID uuid.UUID, reason string) (*domain.Match, error) {
	if reason == "" {
		return nil, apperror.Validation("reason is required")
	}

	var withdrawalID, depositID uuid.UUID
	var result *domain.Match
	err := s.withRetries(ctx, func() error {
		match, withdrawal, deposit, err := s.loadPair(ctx, matchID)
		if err != nil {
			return err
		}
		if match.State != domain.MatchStateProposed {
			return apperror.ErrInvalidTransition(string(match.State), string(domain.MatchStateRejected))
		}

		entry := domain.NewMatchHistory(match.ID, domain.EventMatchRejected, map[string]any{
			"reason": reason,
			"score":  match.Score,
		})
		err = s.transitionPair(ctx, match, withdrawal, deposit,
			domain.ItemStatePending, domain.MatchStateRejected, &reason, entry)
		if err != nil {
			return err
		}

		s.publishPair(ports.NotifyMatchRejected, withdrawal, deposit, match, reason)
		s.log.Info().Str("match_id", match.ID.String()).Str("reason", reason).Msg("match rejected")
		withdrawalID, depositID = withdrawal.ID, deposit.ID
		result = match
		return nil
	})
	if err != nil {
		return nil, err
	}

	// A rejected pair may immediately match with other queue members; the
	// just-rejected counterpart is excluded from this attempt.
	if _, err := s.attemptMatch(ctx, withdrawalID, depositID); err != nil {
		s.log.Warn().Err(err).Str("item_id", withdrawalID.String()).Msg("re-matching after rejection failed")
	}
	if _, err := s.attemptMatch(ctx, depositID, withdrawalID); err != nil {
		s.log.Warn().Err(err).Str("item_id", depositID.String()).Msg("re-matching after rejection failed")
	}

	return s.GetMatch(ctx, result.ID)
}

// MarkCompleted records the external settlement confirmation for an
// APPROVED match, moving both items from PROCESSING to COMPLETED.
func (s *QueueServiceImpl) MarkCompleted(ctx context.Context, matchID uuid.UUID) (*domain.Match, error) {
	var result *domain.Match
	err := s.withRetries(ctx, func() error {
		match, withdrawal, deposit, err := s.loadPair(ctx, matchID)
		if err != nil {
			return err
		}
		if match.State != domain.MatchStateApproved {
			return apperror.ErrInvalidTransition(string(match.State), "COMPLETED")
		}

		tx, err := s.transactor.Begin(ctx)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
		}
		defer tx.Rollback(ctx) //nolint:errcheck

		if err := s.queueRepo.UpdateState(ctx, tx, withdrawal.ID, domain.ItemStateCompleted, withdrawal.Version); err != nil {
			return err
		}
		if err := s.queueRepo.UpdateState(ctx, tx, deposit.ID, domain.ItemStateCompleted, deposit.Version); err != nil {
			return err
		}
		entry := domain.NewMatchHistory(match.ID, domain.EventMatchCompleted, match)
		if err := s.historyRepo.Append(ctx, tx, entry); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("append history: %w", err))
		}
		if err := tx.Commit(ctx); err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
		}

		now := s.now()
		for _, it := range []*domain.QueueItem{withdrawal, deposit} {
			it.State = domain.ItemStateCompleted
			it.Version++
			it.UpdatedAt = now
		}
		s.publishPair(ports.NotifyMatchCompleted, withdrawal, deposit, match, "")
		s.log.Info().Str("match_id", match.ID.String()).Msg("match completed")
		result = match
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel cancels a PENDING or MATCHED item. A matched item's counterpart
// returns to PENDING and the match is marked REJECTED. Any later state
// means the cancellation arrived too late.
func (s *QueueServiceImpl) Cancel(ctx context.Context, itemID uuid.UUID) (*domain.QueueItem, error) {
	var pairedID uuid.UUID
	err := s.withRetries(ctx, func() error {
		item, err := s.queueRepo.GetByID(ctx, itemID)
		if err != nil {
			return apperror.ErrDatabaseError(err)
		}
		if item == nil {
			return apperror.ErrNotFound("queue item")
		}

		switch item.State {
		case domain.ItemStatePending:
			return s.cancelPending(ctx, item)
		case domain.ItemStateMatched:
			id, err := s.cancelMatched(ctx, item)
			pairedID = id
			return err
		default:
			return apperror.ErrInvalidTransition(string(item.State), string(domain.ItemStateCancelled))
		}
	})
	if err != nil {
		return nil, err
	}

	if pairedID != uuid.Nil {
		if _, err := s.attemptMatch(ctx, pairedID, itemID); err != nil {
			s.log.Warn().Err(err).Str("item_id", pairedID.String()).Msg("re-matching after cancellation failed")
		}
	}

	return s.GetItem(ctx, itemID)
}

// UpdateNotes sets the operator-only notes field. Everything else on the
// item is immutable after creation.
func (s *QueueServiceImpl) UpdateNotes(ctx context.Context, itemID uuid.UUID, notes *string) (*domain.QueueItem, error) {
	err := s.withRetries(ctx, func() error {
		item, err := s.queueRepo.GetByID(ctx, itemID)
		if err != nil {
			return apperror.ErrDatabaseError(err)
		}
		if item == nil {
			return apperror.ErrNotFound("queue item")
		}
		return s.queueRepo.UpdateNotes(ctx, itemID, notes, item.Version)
	})
	if err != nil {
		return nil, err
	}
	return s.GetItem(ctx, itemID)
}

// --- internals ---

func validateEnqueue(req ports.EnqueueRequest) error {
	if req.CustomerID == "" {
		return apperror.Validation("customer_id is required")
	}
	if !req.Amount.IsPositive() {
		return apperror.Validation("amount must be greater than zero")
	}
	if !req.PaymentType.IsValid() {
		return apperror.Validation(fmt.Sprintf("unknown payment_type %q", req.PaymentType))
	}
	if req.Kind != domain.ItemKindWithdrawal && req.Kind != domain.ItemKindDeposit {
		return apperror.Validation(fmt.Sprintf("unknown kind %q", req.Kind))
	}
	if req.ChannelRef == "" {
		return apperror.Validation("channel_ref is required")
	}
	if req.Priority < 0 {
		return apperror.Validation("priority must not be negative")
	}
	return nil
}

// attemptMatch runs one full matching cycle for the item: snapshot the
// opposing queue, score, and commit the pair transition atomically. A lost
// version race re-snapshots and tries again, since the opposing queue has
// changed under us.
func (s *QueueServiceImpl) attemptMatch(ctx context.Context, itemID, excludeID uuid.UUID) (*domain.Match, error) {
	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		item, err := s.queueRepo.GetByID(ctx, itemID)
		if err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
		if item == nil || item.State != domain.ItemStatePending {
			return nil, nil // raced into another state; nothing to do
		}

		opposing, err := s.queueRepo.ListPending(ctx, item.Kind.Opposite())
		if err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
		if excludeID != uuid.Nil {
			opposing = withoutItem(opposing, excludeID)
		}

		proposal := s.matcher.FindBestMatch(*item, opposing, s.now())
		if proposal == nil {
			return nil, nil // stays PENDING
		}

		match, err := s.commitProposal(ctx, item, proposal)
		if isVersionConflict(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return match, nil
	}
	return nil, apperror.ErrConflict(errors.New("matching lost the version race"))
}

// commitProposal transitions both items to MATCHED and writes the match
// record as one atomic store transaction. The version stamps carried from
// the read snapshot make it impossible for either item to be matched into
// two different match records.
func (s *QueueServiceImpl) commitProposal(ctx context.Context, item *domain.QueueItem, proposal *Proposal) (*domain.Match, error) {
	counterpart := proposal.Counterpart

	// Belt-and-braces check of the one-active-match invariant; the version
	// stamps below are the actual guard.
	for _, id := range []uuid.UUID{item.ID, counterpart.ID} {
		active, err := s.matchRepo.ActiveMatchExists(ctx, id)
		if err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
		if active {
			return nil, apperror.ErrVersionConflict()
		}
	}

	withdrawalID, depositID := item.ID, counterpart.ID
	if item.Kind == domain.ItemKindDeposit {
		withdrawalID, depositID = counterpart.ID, item.ID
	}

	now := s.now()
	match := &domain.Match{
		ID:           uuid.New(),
		WithdrawalID: withdrawalID,
		DepositID:    depositID,
		Score:        proposal.Score,
		State:        domain.MatchStateProposed,
		CreatedAt:    now,
		Version:      1,
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.queueRepo.UpdateState(ctx, tx, item.ID, domain.ItemStateMatched, item.Version); err != nil {
		return nil, err
	}
	if err := s.queueRepo.UpdateState(ctx, tx, counterpart.ID, domain.ItemStateMatched, counterpart.Version); err != nil {
		return nil, err
	}
	if err := s.matchRepo.Create(ctx, tx, match); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create match: %w", err))
	}
	entry := domain.NewMatchHistory(match.ID, domain.EventMatchProposed, match)
	if err := s.historyRepo.Append(ctx, tx, entry); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("append history: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	s.publishPair(ports.NotifyMatchProposed, item, &counterpart, match, "")
	s.log.Info().
		Str("match_id", match.ID.String()).
		Str("withdrawal_id", withdrawalID.String()).
		Str("deposit_id", depositID.String()).
		Int("score", match.Score).
		Msg("match proposed")
	return match, nil
}

// loadPair fetches a match and both referenced items.
func (s *QueueServiceImpl) loadPair(ctx context.Context, matchID uuid.UUID) (*domain.Match, *domain.QueueItem, *domain.QueueItem, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, nil, nil, apperror.ErrDatabaseError(err)
	}
	if match == nil {
		return nil, nil, nil, apperror.ErrNotFound("match")
	}

	withdrawal, err := s.queueRepo.GetByID(ctx, match.WithdrawalID)
	if err != nil {
		return nil, nil, nil, apperror.ErrDatabaseError(err)
	}
	deposit, err := s.queueRepo.GetByID(ctx, match.DepositID)
	if err != nil {
		return nil, nil, nil, apperror.ErrDatabaseError(err)
	}
	if withdrawal == nil || deposit == nil {
		return nil, nil, nil, apperror.InternalError(fmt.Errorf("match %s references missing items", matchID))
	}
	return match, withdrawal, deposit, nil
}

// transitionPair moves both items and resolves the match atomically. On
// success the passed structs are advanced to the committed state, so callers
// publish what the store now holds rather than the pre-transition snapshot.
func (s *QueueServiceImpl) transitionPair(
	ctx context.Context,
	match *domain.Match,
	withdrawal, deposit *domain.QueueItem,
	itemState domain.ItemState,
	matchState domain.MatchState,
	reason *string,
	entry *domain.HistoryEntry,
) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.queueRepo.UpdateState(ctx, tx, withdrawal.ID, itemState, withdrawal.Version); err != nil {
		return err
	}
	if err := s.queueRepo.UpdateState(ctx, tx, deposit.ID, itemState, deposit.Version); err != nil {
		return err
	}
	if err := s.matchRepo.Resolve(ctx, tx, match.ID, matchState, reason, match.Version); err != nil {
		return err
	}
	if err := s.historyRepo.Append(ctx, tx, entry); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("append history: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	now := s.now()
	for _, it := range []*domain.QueueItem{withdrawal, deposit} {
		it.State = itemState
		it.Version++
		it.UpdatedAt = now
	}
	match.State = matchState
	match.RejectReason = reason
	match.ResolvedAt = &now
	match.Version++
	return nil
}

func (s *QueueServiceImpl) cancelPending(ctx context.Context, item *domain.QueueItem) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.queueRepo.UpdateState(ctx, tx, item.ID, domain.ItemStateCancelled, item.Version); err != nil {
		return err
	}
	entry := domain.NewItemHistory(item.ID, domain.EventItemCancelled, item)
	if err := s.historyRepo.Append(ctx, tx, entry); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("append history: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	item.State = domain.ItemStateCancelled
	item.Version++
	item.UpdatedAt = s.now()
	s.dispatcher.Publish(ports.NotificationEvent{
		Type:         ports.NotifyItemCancelled,
		Item:         item,
		RecipientRef: item.ChannelRef,
	})
	s.log.Info().Str("item_id", item.ID.String()).Msg("pending item cancelled")
	return nil
}

// cancelMatched cancels a matched item, releasing its counterpart back to
// PENDING. Returns the counterpart id so the caller can re-offer it.
func (s *QueueServiceImpl) cancelMatched(ctx context.Context, item *domain.QueueItem) (uuid.UUID, error) {
	match, err := s.matchRepo.GetActiveByItem(ctx, item.ID)
	if err != nil {
		return uuid.Nil, apperror.ErrDatabaseError(err)
	}
	if match == nil {
		return uuid.Nil, apperror.InternalError(fmt.Errorf("matched item %s has no active match", item.ID))
	}

	pairedID := match.WithdrawalID
	if pairedID == item.ID {
		pairedID = match.DepositID
	}
	paired, err := s.queueRepo.GetByID(ctx, pairedID)
	if err != nil {
		return uuid.Nil, apperror.ErrDatabaseError(err)
	}
	if paired == nil {
		return uuid.Nil, apperror.InternalError(fmt.Errorf("match %s references missing item %s", match.ID, pairedID))
	}

	reason := "counterpart cancelled"

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return uuid.Nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.queueRepo.UpdateState(ctx, tx, item.ID, domain.ItemStateCancelled, item.Version); err != nil {
		return uuid.Nil, err
	}
	if err := s.queueRepo.UpdateState(ctx, tx, paired.ID, domain.ItemStatePending, paired.Version); err != nil {
		return uuid.Nil, err
	}
	if err := s.matchRepo.Resolve(ctx, tx, match.ID, domain.MatchStateRejected, &reason, match.Version); err != nil {
		return uuid.Nil, err
	}
	entry := domain.NewItemHistory(item.ID, domain.EventItemCancelled, map[string]any{
		"match_id": match.ID,
		"reason":   reason,
	})
	if err := s.historyRepo.Append(ctx, tx, entry); err != nil {
		return uuid.Nil, apperror.ErrDatabaseError(fmt.Errorf("append history: %w", err))
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	now := s.now()
	item.State = domain.ItemStateCancelled
	item.Version++
	item.UpdatedAt = now
	paired.State = domain.ItemStatePending
	paired.Version++
	paired.UpdatedAt = now
	match.State = domain.MatchStateRejected
	match.RejectReason = &reason
	match.ResolvedAt = &now
	match.Version++
	s.dispatcher.Publish(ports.NotificationEvent{
		Type:         ports.NotifyItemCancelled,
		Item:         item,
		Match:        match,
		RecipientRef: item.ChannelRef,
	})
	s.dispatcher.Publish(ports.NotificationEvent{
		Type:         ports.NotifyMatchRejected,
		Item:         paired,
		Match:        match,
		RecipientRef: paired.ChannelRef,
		Reason:       reason,
	})
	s.log.Info().
		Str("item_id", item.ID.String()).
		Str("match_id", match.ID.String()).
		Msg("matched item cancelled, counterpart released")
	return paired.ID, nil
}

// publishPair emits one notification per party.
func (s *QueueServiceImpl) publishPair(t ports.NotificationType, withdrawal, deposit *domain.QueueItem, match *domain.Match, reason string) {
	s.dispatcher.Publish(ports.NotificationEvent{
		Type:         t,
		Item:         withdrawal,
		PairedItem:   deposit,
		Match:        match,
		RecipientRef: withdrawal.ChannelRef,
		Reason:       reason,
	})
	s.dispatcher.Publish(ports.NotificationEvent{
		Type:         t,
		Item:         deposit,
		PairedItem:   withdrawal,
		Match:        match,
		RecipientRef: deposit.ChannelRef,
		Reason:       reason,
	})
}

// appendHistory writes a non-transactional audit entry; failures are logged
// but never fail the triggering operation.
func (s *QueueServiceImpl) appendHistory(ctx context.Context, entry *domain.HistoryEntry) {
	if err := s.historyRepo.Append(ctx, nil, entry); err != nil {
		s.log.Warn().Err(err).Str("event", string(entry.EventType)).Msg("failed to append history")
	}
}

// withRetries runs op, retrying on store-level version conflicts. After the
// retry budget the conflict is surfaced as retryable.
func (s *QueueServiceImpl) withRetries(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxTransitionRetries; attempt++ {
		err := op()
		if !isVersionConflict(err) {
			return err
		}
		lastErr = err
		s.log.Debug().Int("attempt", attempt+1).Msg("version conflict, retrying transition")
	}
	return apperror.ErrConflict(lastErr)
}

func isVersionConflict(err error) bool {
	var appErr *apperror.AppError
	return errors.As(err, &appErr) && appErr.Code == "QUE_004"
}

func withoutItem(items []domain.QueueItem, id uuid.UUID) []domain.QueueItem {
	out := items[:0:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}
