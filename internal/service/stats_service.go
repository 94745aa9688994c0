package service

import (
	"context"
	"encoding/json"

	"p2p-match-engine/internal/core/ports"
	"p2p-match-engine/pkg/apperror"

	"github.com/rs/zerolog"
)

// statsService implements ports.StatsService. Strictly read-only: it never
// mutates store state.
type statsService struct {
	queueRepo ports.QueueRepository
	cache     ports.StatsCache // nil = caching disabled
	log       zerolog.Logger
}

// NewStatsService creates a new stats service. cache may be nil.
func NewStatsService(queueRepo ports.QueueRepository, cache ports.StatsCache, log zerolog.Logger) ports.StatsService {
	return &statsService{queueRepo: queueRepo, cache: cache, log: log}
}

// GetStats returns queue aggregates, served from the cache when fresh.
// Cache failures degrade to direct store reads.
func (s *statsService) GetStats(ctx context.Context) (*ports.Stats, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx); err != nil {
			s.log.Warn().Err(err).Msg("stats cache read failed, falling through to store")
		} else if cached != nil {
			stats := &ports.Stats{}
			if err := json.Unmarshal(cached, stats); err == nil {
				return stats, nil
			}
		}
	}

	raw, err := s.queueRepo.GetStats(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	stats := &ports.Stats{
		TotalItems:         raw.TotalItems,
		PendingWithdrawals: raw.PendingWithdrawals,
		PendingDeposits:    raw.PendingDeposits,
		MatchedPairs:       raw.MatchedPairs,
		ByPaymentType:      raw.ByPaymentType,
	}
	if raw.ActiveItems > 0 {
		stats.AverageWaitSeconds = raw.ActiveWaitSeconds / float64(raw.ActiveItems)
	}
	if resolved := raw.Completed + raw.Rejected + raw.Cancelled; resolved > 0 {
		stats.SuccessRate = float64(raw.Completed) / float64(resolved)
	}

	if s.cache != nil {
		if data, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, data); err != nil {
				s.log.Warn().Err(err).Msg("stats cache write failed")
			}
		}
	}
	return stats, nil
}
