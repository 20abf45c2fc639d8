package match

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/calloway/ledgerflow/internal/model"
)

// TransferConfig controls transfer detection.
type TransferConfig struct {
	Scorer ScorerConfig

	// DateToleranceDays is the maximum day gap between the two legs.
	DateToleranceDays int

	// MinConfidence filters out weak candidates.
	MinConfidence float64
}

// DefaultTransferConfig returns the standard detection settings.
func DefaultTransferConfig() TransferConfig {
	return TransferConfig{
		Scorer:            DefaultScorerConfig(),
		DateToleranceDays: 3,
		MinConfidence:     0.5,
	}
}

// TransferDetector finds (debit, credit) pairs across distinct accounts
// that are really two legs of one transfer.
type TransferDetector struct {
	scorer *Scorer
	cfg    TransferConfig
}

// NewTransferDetector creates a detector with the given configuration.
func NewTransferDetector(cfg TransferConfig) *TransferDetector {
	return &TransferDetector{
		scorer: NewScorer(cfg.Scorer),
		cfg:    cfg,
	}
}

// FindCandidates scores every debit against credits within the date
// tolerance and returns deduplicated candidates sorted by descending
// confidence.
func (d *TransferDetector) FindCandidates(ctx context.Context, txns []model.Transaction) ([]model.MatchCandidate, error) {
	var debits []model.Transaction
	creditsByDay := make(map[time.Time][]model.Transaction)

	for _, txn := range txns {
		if txn.IsDebit() {
			debits = append(debits, txn)
		} else if txn.Amount > 0 {
			day := startOfDay(txn.PostedDate)
			creditsByDay[day] = append(creditsByDay[day], txn)
		}
	}

	best := make(map[string]model.MatchCandidate)
	for _, debit := range debits {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// Walk every day bucket within tolerance of the debit's date, so
		// legs a day apart in adjacent buckets are still compared.
		anchor := startOfDay(debit.PostedDate)
		for offset := -d.cfg.DateToleranceDays; offset <= d.cfg.DateToleranceDays; offset++ {
			day := anchor.AddDate(0, 0, offset)
			for _, credit := range creditsByDay[day] {
				if credit.AccountID == debit.AccountID {
					continue
				}
				d.consider(best, debit, credit)
			}
		}
	}

	candidates := sortCandidates(best)
	slog.Debug("transfer detection complete",
		"transactions", len(txns),
		"debits", len(debits),
		"candidates", len(candidates))
	return candidates, nil
}

func (d *TransferDetector) consider(best map[string]model.MatchCandidate, debit, credit model.Transaction) {
	confidence, reasons := d.scorer.Score(debit, credit)
	if confidence < d.cfg.MinConfidence {
		return
	}

	candidate := model.MatchCandidate{
		ID:               uuid.NewString(),
		SourceID:         debit.ID,
		TargetID:         credit.ID,
		Amount:           -debit.Amount,
		Date:             debit.PostedDate,
		Confidence:       confidence,
		MatchingCriteria: reasons,
	}

	// The same pair may be evaluated from both directions; keep the
	// higher-confidence evaluation.
	key := candidate.PairKey()
	if existing, ok := best[key]; ok && existing.Confidence >= confidence {
		return
	}
	best[key] = candidate
}

func sortCandidates(best map[string]model.MatchCandidate) []model.MatchCandidate {
	candidates := make([]model.MatchCandidate, 0, len(best))
	for _, c := range best {
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].PairKey() < candidates[j].PairKey()
	})
	return candidates
}
