// Package match implements the weighted pairwise scorer shared by transfer
// detection and reconciliation, combining several imperfect signals into a
// single confidence number in [0,1].
package match

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/calloway/ledgerflow/internal/model"
	"github.com/calloway/ledgerflow/internal/textsim"
)

// ScorerConfig holds the per-criterion weights and thresholds. Transfer
// detection and reconciliation use the same scorer with different values.
type ScorerConfig struct {
	// AmountTolerance is the maximum relative amount difference. Pairs
	// beyond it are rejected outright; amount is a necessary condition,
	// not a weighted signal.
	AmountTolerance float64

	// ExactAmountWeight applies when amounts match to the cent;
	// CloseAmountWeight applies when they only fall within tolerance.
	ExactAmountWeight float64
	CloseAmountWeight float64

	SameDayBonus     float64
	AdjacentDayBonus float64

	// TextWeight scales the description similarity score.
	TextWeight float64

	// CrossReferenceBonus fires per direction when one side's description
	// mentions the other side's account name.
	CrossReferenceBonus float64

	// RoundAmountBonus rewards whole-dollar or multiple-of-25 amounts;
	// transfers are disproportionately round numbers.
	RoundAmountBonus float64
}

// DefaultScorerConfig returns the standard weights.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		AmountTolerance:     0.05,
		ExactAmountWeight:   0.50,
		CloseAmountWeight:   0.40,
		SameDayBonus:        0.20,
		AdjacentDayBonus:    0.10,
		TextWeight:          0.30,
		CrossReferenceBonus: 0.10,
		RoundAmountBonus:    0.05,
	}
}

// Scorer evaluates a fixed ordered list of weighted criteria over a
// transaction pair. It is stateless and safe for concurrent use.
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer creates a scorer with the given weights.
func NewScorer(cfg ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score returns the pair's confidence in [0,1] and one human-readable
// reason per contributing criterion. A pair failing the amount gate scores
// zero with no reasons.
func (s *Scorer) Score(a, b model.Transaction) (float64, []string) {
	absA, absB := math.Abs(a.Amount), math.Abs(b.Amount)
	relDiff := relativeDifference(absA, absB)
	if relDiff > s.cfg.AmountTolerance {
		return 0, nil
	}

	var confidence float64
	var reasons []string

	if relDiff < 1e-9 {
		confidence += s.cfg.ExactAmountWeight
		reasons = append(reasons, fmt.Sprintf("exact amount match ($%.2f)", absA))
	} else {
		confidence += s.cfg.CloseAmountWeight
		reasons = append(reasons, fmt.Sprintf("amounts within %.0f%% tolerance", s.cfg.AmountTolerance*100))
	}

	switch days := dayDelta(a, b); days {
	case 0:
		confidence += s.cfg.SameDayBonus
		reasons = append(reasons, "same date")
	case 1:
		confidence += s.cfg.AdjacentDayBonus
		reasons = append(reasons, "dates one day apart")
	}

	sim := textsim.Similarity(a.DisplayDescription(), b.DisplayDescription())
	if sim >= textsim.SimilarThreshold {
		confidence += sim * s.cfg.TextWeight
		reasons = append(reasons, fmt.Sprintf("similar descriptions (%.2f)", sim))
	}

	if mentionsAccount(a.Description, b.AccountName) {
		confidence += s.cfg.CrossReferenceBonus
		reasons = append(reasons, fmt.Sprintf("description references account %q", b.AccountName))
	}
	if mentionsAccount(b.Description, a.AccountName) {
		confidence += s.cfg.CrossReferenceBonus
		reasons = append(reasons, fmt.Sprintf("description references account %q", a.AccountName))
	}

	if isRoundAmount(absA) && isRoundAmount(absB) {
		confidence += s.cfg.RoundAmountBonus
		reasons = append(reasons, "round amount")
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence, reasons
}

func relativeDifference(a, b float64) float64 {
	largest := math.Max(a, b)
	if largest == 0 {
		return 0
	}
	return math.Abs(a-b) / largest
}

func dayDelta(a, b model.Transaction) int {
	delta := int(startOfDay(a.PostedDate).Sub(startOfDay(b.PostedDate)).Hours() / 24)
	if delta < 0 {
		delta = -delta
	}
	return delta
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func mentionsAccount(description, accountName string) bool {
	if strings.TrimSpace(accountName) == "" {
		return false
	}
	desc := textsim.Normalize(description)
	name := textsim.Normalize(accountName)
	if desc == "" || name == "" {
		return false
	}
	return strings.Contains(desc, name)
}

// isRoundAmount reports whether the amount is a whole-dollar value or an
// exact multiple of 25.
func isRoundAmount(amount float64) bool {
	if amount == 0 {
		return false
	}
	cents := math.Round(amount * 100)
	if math.Mod(cents, 100) == 0 {
		return true
	}
	return math.Mod(cents, 2500) == 0
}
