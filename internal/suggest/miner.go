// Package suggest mines historical categorized transactions for new rule
// proposals.
package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/calloway/ledgerflow/internal/model"
	"github.com/calloway/ledgerflow/internal/textsim"
)

// HistorySource provides a user's already-categorized transactions.
type HistorySource interface {
	GetCategorizedTransactions(ctx context.Context, userID string) ([]model.Transaction, error)
}

// SuggestionStore tracks previously generated suggestions so re-running the
// miner on unchanged data does not duplicate them.
type SuggestionStore interface {
	// ExcludedPatterns returns patterns that are pending, or were
	// rejected within the cooldown window ending at now.
	ExcludedPatterns(ctx context.Context, userID string, now time.Time) (map[string]bool, error)
}

// Config holds the mining thresholds.
type Config struct {
	// MinGroupSize is the smallest description cluster worth proposing.
	MinGroupSize int

	// MinConfidence rejects weak proposals.
	MinConfidence float64

	// MaxSamples bounds the per-suggestion sample transactions.
	MaxSamples int

	// SignatureTokens is the leading-token signature length used for
	// grouping.
	SignatureTokens int

	// RejectionCooldown is how long a rejected pattern stays out of
	// mining.
	RejectionCooldown time.Duration
}

// DefaultConfig returns the standard mining settings.
func DefaultConfig() Config {
	return Config{
		MinGroupSize:      3,
		MinConfidence:     0.7,
		MaxSamples:        5,
		SignatureTokens:   2,
		RejectionCooldown: 30 * 24 * time.Hour,
	}
}

// Miner proposes new rules by clustering description patterns in a user's
// categorized history.
type Miner struct {
	history HistorySource
	store   SuggestionStore
	cfg     Config
	now     func() time.Time
}

// NewMiner creates a miner. store may be nil, in which case no patterns are
// excluded.
func NewMiner(history HistorySource, store SuggestionStore, cfg Config) *Miner {
	return &Miner{
		history: history,
		store:   store,
		cfg:     cfg,
		now:     time.Now,
	}
}

// GenerateSuggestions mines the user's history and returns up to limit
// proposals at or above minConfidence (falling back to the configured
// minimum when minConfidence is zero), ordered by match count descending.
func (m *Miner) GenerateSuggestions(ctx context.Context, userID string, limit int, minConfidence float64) ([]model.RuleSuggestion, error) {
	if minConfidence <= 0 {
		minConfidence = m.cfg.MinConfidence
	}

	history, err := m.history.GetCategorizedTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categorized history: %w", err)
	}
	if len(history) == 0 {
		return nil, nil
	}

	excluded := map[string]bool{}
	if m.store != nil {
		excluded, err = m.store.ExcludedPatterns(ctx, userID, m.now())
		if err != nil {
			return nil, fmt.Errorf("failed to load excluded patterns: %w", err)
		}
	}

	groups := make(map[string][]model.Transaction)
	for _, txn := range history {
		if txn.CategoryID == "" {
			continue
		}
		signature := textsim.Signature(txn.DisplayDescription(), m.cfg.SignatureTokens)
		if signature == "" {
			continue
		}
		groups[signature] = append(groups[signature], txn)
	}

	var suggestions []model.RuleSuggestion
	for pattern, group := range groups {
		if len(group) < m.cfg.MinGroupSize || excluded[pattern] {
			continue
		}

		confidence := m.scoreGroup(group, len(history))
		if confidence < minConfidence {
			continue
		}

		suggestions = append(suggestions, model.RuleSuggestion{
			ID:                  uuid.NewString(),
			UserID:              userID,
			Pattern:             pattern,
			SuggestedCategoryID: dominantCategory(group),
			SampleTransactions:  sampleTransactions(group, m.cfg.MaxSamples),
			Status:              model.SuggestionPending,
			MatchCount:          len(group),
			Confidence:          confidence,
			CreatedAt:           m.now().UTC(),
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].MatchCount != suggestions[j].MatchCount {
			return suggestions[i].MatchCount > suggestions[j].MatchCount
		}
		return suggestions[i].Pattern < suggestions[j].Pattern
	})
	if limit > 0 && len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}

	slog.Info("suggestion mining complete",
		"user_id", userID,
		"history", len(history),
		"groups", len(groups),
		"suggestions", len(suggestions))
	return suggestions, nil
}

// scoreGroup blends intra-group description similarity with the group's
// coverage of the user's history.
func (m *Miner) scoreGroup(group []model.Transaction, total int) float64 {
	coverage := float64(len(group)) / float64(total)
	if coverage > 0.1 {
		coverage = 0.1
	}

	confidence := 0.6*averageSimilarity(group) + 4*coverage
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}

// averageSimilarity computes the mean pairwise description similarity over
// a bounded prefix of the group; full pairwise comparison is quadratic and
// unnecessary for scoring.
func averageSimilarity(group []model.Transaction) float64 {
	const maxCompared = 10

	n := len(group)
	if n > maxCompared {
		n = maxCompared
	}
	if n < 2 {
		return 1
	}

	var sum float64
	var pairs int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sum += textsim.Similarity(group[i].DisplayDescription(), group[j].DisplayDescription())
			pairs++
		}
	}
	return sum / float64(pairs)
}

// dominantCategory returns the most common category in the group, breaking
// ties by category ID for determinism.
func dominantCategory(group []model.Transaction) string {
	counts := make(map[string]int)
	for _, txn := range group {
		counts[txn.CategoryID]++
	}

	var best string
	var bestCount int
	for categoryID, count := range counts {
		if count > bestCount || (count == bestCount && categoryID < best) {
			best = categoryID
			bestCount = count
		}
	}
	return best
}

// sampleTransactions keeps the newest transactions for user review.
func sampleTransactions(group []model.Transaction, maxSamples int) []model.Transaction {
	samples := make([]model.Transaction, len(group))
	copy(samples, group)
	sort.Slice(samples, func(i, j int) bool {
		if !samples[i].PostedDate.Equal(samples[j].PostedDate) {
			return samples[i].PostedDate.After(samples[j].PostedDate)
		}
		return samples[i].ID < samples[j].ID
	})
	if len(samples) > maxSamples {
		samples = samples[:maxSamples]
	}
	return samples
}
