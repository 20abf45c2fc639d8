package match

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/calloway/ledgerflow/internal/model"
)

// ReconcileConfig controls reconciliation matching.
type ReconcileConfig struct {
	Scorer ScorerConfig

	DateToleranceDays int
	MinConfidence     float64

	// ExcludeIDs holds transaction IDs that are already reconciled and
	// must not be matched again.
	ExcludeIDs map[string]bool
}

// DefaultReconcileConfig returns the standard reconciliation settings.
// Reconciliation tolerates a wider date gap than transfer detection since
// bank posting dates routinely lag the recorded transaction.
func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		Scorer:            DefaultScorerConfig(),
		DateToleranceDays: 5,
		MinConfidence:     0.6,
	}
}

// Reconciler matches internally recorded transactions against externally
// reported bank lines using the weighted scorer.
type Reconciler struct {
	scorer *Scorer
	cfg    ReconcileConfig
}

// NewReconciler creates a reconciler with the given configuration.
func NewReconciler(cfg ReconcileConfig) *Reconciler {
	return &Reconciler{
		scorer: NewScorer(cfg.Scorer),
		cfg:    cfg,
	}
}

// FindMatches pairs internal transactions with external bank lines,
// excluding already-reconciled items on either side, and returns candidates
// sorted by descending confidence.
func (r *Reconciler) FindMatches(ctx context.Context, internal, external []model.Transaction) ([]model.MatchCandidate, error) {
	externalByDay := make(map[time.Time][]model.Transaction)
	for _, line := range external {
		if r.cfg.ExcludeIDs[line.ID] {
			continue
		}
		day := startOfDay(line.PostedDate)
		externalByDay[day] = append(externalByDay[day], line)
	}

	best := make(map[string]model.MatchCandidate)
	for _, txn := range internal {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if r.cfg.ExcludeIDs[txn.ID] {
			continue
		}

		anchor := startOfDay(txn.PostedDate)
		for offset := -r.cfg.DateToleranceDays; offset <= r.cfg.DateToleranceDays; offset++ {
			day := anchor.AddDate(0, 0, offset)
			for _, line := range externalByDay[day] {
				r.consider(best, txn, line)
			}
		}
	}

	matches := sortCandidates(best)
	slog.Debug("reconciliation matching complete",
		"internal", len(internal),
		"external", len(external),
		"matches", len(matches))
	return matches, nil
}

func (r *Reconciler) consider(best map[string]model.MatchCandidate, txn, line model.Transaction) {
	confidence, reasons := r.scorer.Score(txn, line)
	if confidence < r.cfg.MinConfidence {
		return
	}

	candidate := model.MatchCandidate{
		ID:               uuid.NewString(),
		SourceID:         txn.ID,
		TargetID:         line.ID,
		Amount:           txn.Amount,
		Date:             txn.PostedDate,
		Confidence:       confidence,
		MatchingCriteria: reasons,
	}

	key := candidate.PairKey()
	if existing, ok := best[key]; ok && existing.Confidence >= confidence {
		return
	}
	best[key] = candidate
}
