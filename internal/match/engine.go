// Package match scores external candidates against a wanted (asset, period,
// end-time, status) tuple and picks the best one.
//
// The selection is a greedy best-of per tuple, not a global assignment: one
// external candidate may be claimed by more than one local slot across a
// batch.
package match

import (
	"log/slog"
	"math"
	"time"

	"github.com/Jock20242024/yesno-factory/internal/domain"
)

const (
	// Window is the maximum end-time distance a candidate may have from
	// the wanted boundary.
	Window = 30 * time.Minute

	// Threshold is the minimum score (exclusive) a best candidate must
	// reach to be accepted.
	Threshold = 40.0

	symbolScore      = 100.0
	perMinutePenalty = 0.5
	bothOpenBonus    = 10.0
	bothClosedBonus  = 5.0
	activityBonus    = 5.0
)

// Want is the tuple a local slot wants reconciled.
type Want struct {
	Asset   string // base asset symbol, e.g. "BTC"
	Period  int    // minutes, carried for logging only
	EndTime time.Time
	Status  domain.SlotStatus
}

// Engine scores candidates for reconciliation.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a match engine.
func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

// Best returns the highest-scoring candidate for the wanted tuple, or nil
// when no candidate clears the threshold. Ties keep the first-seen candidate.
func (e *Engine) Best(candidates []domain.ExternalCandidate, want Want) (*domain.ExternalCandidate, *domain.MatchResult) {
	var (
		best      *domain.ExternalCandidate
		bestScore float64
	)

	for i := range candidates {
		c := &candidates[i]

		score, ok := Score(*c, want)
		if !ok {
			continue
		}
		if best == nil || score > bestScore {
			best = c
			bestScore = score
		}
	}

	if best == nil || bestScore <= Threshold {
		return nil, nil
	}

	e.logger.Debug("candidate matched",
		slog.String("asset", want.Asset),
		slog.Int("period", want.Period),
		slog.String("candidate_id", best.ID),
		slog.Float64("score", bestScore),
	)
	return best, &domain.MatchResult{CandidateID: best.ID, Score: bestScore}
}

// Score computes the reconciliation score of a single candidate, returning
// ok=false when the candidate is discarded outright (no alias hit, missing or
// out-of-window end time, or a closed candidate offered to an OPEN slot).
func Score(c domain.ExternalCandidate, want Want) (float64, bool) {
	if !aliasHit(want.Asset, c.Text()) {
		return 0, false
	}
	if c.EndTime == nil {
		return 0, false
	}

	diff := c.EndTime.Sub(want.EndTime)
	if diff < 0 {
		diff = -diff
	}
	if diff > Window {
		return 0, false
	}
	if want.Status == domain.SlotStatusOpen && c.Closed {
		return 0, false
	}

	score := symbolScore
	score -= perMinutePenalty * math.Abs(diff.Minutes())

	if want.Status == domain.SlotStatusOpen && !c.Closed {
		score += bothOpenBonus
	}
	if want.Status == domain.SlotStatusClosed && c.Closed {
		score += bothClosedBonus
	}
	if c.Volume > 0 {
		score += activityBonus
	}
	return score, true
}
