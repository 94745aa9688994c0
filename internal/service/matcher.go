package service

import (
	"time"

	"p2p-match-engine/internal/core/domain"

	"github.com/shopspring/decimal"
)

// MatcherConfig holds the tunable scoring weights and thresholds. The
// defaults are operator-provided starting points, not fixed law; every
// value can be overridden from configuration.
type MatcherConfig struct {
	// PaymentTypeBonus is awarded when both items use the same payment rail.
	PaymentTypeBonus int
	// Proximity bonuses by absolute amount difference, in currency units.
	ProximityTightBonus  int // |diff| < ProximityTight
	ProximityMediumBonus int // |diff| < ProximityMedium
	ProximityWideBonus   int // |diff| < ProximityWide
	ProximityTight       decimal.Decimal
	ProximityMedium      decimal.Decimal
	ProximityWide        decimal.Decimal
	// DirectionBonus is awarded when the deposit fully covers the
	// withdrawal. Pairs failing that rule are excluded outright.
	DirectionBonus int
	// Age bonus: AgeBonusStep points per full AgeBonusInterval the opposing
	// item has waited, capped at AgeBonusCap so a stale queue cannot
	// outweigh the amount and rail signals.
	AgeBonusStep     int
	AgeBonusInterval time.Duration
	AgeBonusCap      int
}

// DefaultMatcherConfig returns the stock weights (20 / 30-20-10 / 25).
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		PaymentTypeBonus:     20,
		ProximityTightBonus:  30,
		ProximityMediumBonus: 20,
		ProximityWideBonus:   10,
		ProximityTight:       decimal.NewFromInt(10),
		ProximityMedium:      decimal.NewFromInt(50),
		ProximityWide:        decimal.NewFromInt(100),
		DirectionBonus:       25,
		AgeBonusStep:         1,
		AgeBonusInterval:     5 * time.Minute,
		AgeBonusCap:          15,
	}
}

// Proposal is a scored pairing candidate selected by the matcher. The queue
// manager turns it into a Match record.
type Proposal struct {
	Counterpart domain.QueueItem
	Score       int
}

// Matcher scores withdrawal/deposit pairs and picks the best counterpart.
// It is pure and stateless: it never mutates its inputs and is safe to call
// from concurrent queue manager invocations.
type Matcher struct {
	cfg MatcherConfig
}

// NewMatcher creates a Matcher with the given weights.
func NewMatcher(cfg MatcherConfig) *Matcher {
	return &Matcher{cfg: cfg}
}

// FindBestMatch selects the highest-scoring viable counterpart for
// candidate among the opposing queue's pending items, or nil when no
// counterpart reaches the minimum viable score. Ties are broken by the
// earliest enqueued opposing item.
func (m *Matcher) FindBestMatch(candidate domain.QueueItem, opposing []domain.QueueItem, now time.Time) *Proposal {
	var best *Proposal
	for _, other := range opposing {
		if other.State != domain.ItemStatePending {
			continue
		}
		if other.Kind == candidate.Kind {
			continue
		}
		// Self-matching is a correctness rule, not a scoring penalty.
		if other.CustomerID == candidate.CustomerID {
			continue
		}

		score, ok := m.Score(candidate, other, now)
		if !ok {
			continue
		}

		if best == nil || score > best.Score ||
			(score == best.Score && other.EnqueuedAt.Before(best.Counterpart.EnqueuedAt)) {
			best = &Proposal{Counterpart: other, Score: score}
		}
	}
	return best
}

// Score computes the cumulative score for a withdrawal/deposit pair.
// The second return value is false when the pair is excluded (direction
// violation) or falls below the minimum viable threshold: at least one of
// the payment-type or amount-proximity terms must be positive.
func (m *Matcher) Score(a, b domain.QueueItem, now time.Time) (int, bool) {
	withdrawal, deposit := a, b
	if a.Kind == domain.ItemKindDeposit {
		withdrawal, deposit = b, a
	}

	// A deposit must be able to fully cover the withdrawal. Equal amounts
	// always qualify.
	if withdrawal.Amount.GreaterThan(deposit.Amount) {
		return 0, false
	}

	paymentScore := 0
	if a.PaymentType == b.PaymentType {
		paymentScore = m.cfg.PaymentTypeBonus
	}

	proximityScore := m.proximity(withdrawal.Amount, deposit.Amount)

	if paymentScore == 0 && proximityScore == 0 {
		return 0, false
	}

	// b is the opposing (already queued) item; older counterparts earn a
	// small monotone bonus so they drain first.
	return paymentScore + proximityScore + m.cfg.DirectionBonus + m.ageBonus(b, now), true
}

func (m *Matcher) proximity(w, d decimal.Decimal) int {
	diff := w.Sub(d).Abs()
	switch {
	case diff.LessThan(m.cfg.ProximityTight):
		return m.cfg.ProximityTightBonus
	case diff.LessThan(m.cfg.ProximityMedium):
		return m.cfg.ProximityMediumBonus
	case diff.LessThan(m.cfg.ProximityWide):
		return m.cfg.ProximityWideBonus
	default:
		return 0
	}
}

func (m *Matcher) ageBonus(item domain.QueueItem, now time.Time) int {
	if m.cfg.AgeBonusInterval <= 0 {
		return 0
	}
	steps := int(item.WaitingFor(now) / m.cfg.AgeBonusInterval)
	bonus := steps * m.cfg.AgeBonusStep
	if bonus < 0 {
		return 0
	}
	if bonus > m.cfg.AgeBonusCap {
		return m.cfg.AgeBonusCap
	}
	return bonus
}
