package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calloway/ledgerflow/internal/model"
)

func TestEngine_FindMatches_Ordering(t *testing.T) {
	ctx := context.Background()
	txn := model.Transaction{Description: "COSTCO WHOLESALE #123", Amount: -240.00}

	ruleSet := []model.Rule{
		{ID: 3, Pattern: "COSTCO", Type: model.MatchContains, Priority: 10, ConfidenceScore: 0.80, CategoryID: "shopping", IsActive: true},
		{ID: 1, Pattern: "COSTCO WHOLESALE", Type: model.MatchStartsWith, Priority: 5, ConfidenceScore: 0.92, CategoryID: "groceries", IsActive: true},
		{ID: 2, Pattern: "COSTCO", Type: model.MatchContains, Priority: 10, ConfidenceScore: 0.90, CategoryID: "bulk", IsActive: true},
		{ID: 4, Pattern: "GAS", Type: model.MatchContains, Priority: 1, CategoryID: "fuel", IsActive: true},
	}

	engine := NewEngine(ruleSet)
	matches := engine.FindMatches(ctx, txn)

	require.Len(t, matches, 3)
	// Priority ascending, then confidence descending.
	assert.Equal(t, int64(1), matches[0].Rule.ID)
	assert.Equal(t, int64(2), matches[1].Rule.ID)
	assert.Equal(t, int64(3), matches[2].Rule.ID)
}

func TestEngine_FindMatches_TieBreakByID(t *testing.T) {
	ctx := context.Background()
	txn := model.Transaction{Description: "COSTCO"}

	ruleSet := []model.Rule{
		{ID: 9, Pattern: "COSTCO", Type: model.MatchContains, Priority: 5, ConfidenceScore: 0.85, IsActive: true},
		{ID: 2, Pattern: "COSTCO", Type: model.MatchContains, Priority: 5, ConfidenceScore: 0.85, IsActive: true},
	}

	engine := NewEngine(ruleSet)
	matches := engine.FindMatches(ctx, txn)

	require.Len(t, matches, 2)
	assert.Equal(t, int64(2), matches[0].Rule.ID)
	assert.Equal(t, int64(9), matches[1].Rule.ID)
}

func TestEngine_FindMatches_SkipsInactive(t *testing.T) {
	ctx := context.Background()
	txn := model.Transaction{Description: "NETFLIX.COM"}

	ruleSet := []model.Rule{
		{ID: 1, Pattern: "NETFLIX", Type: model.MatchContains, IsActive: false},
	}

	engine := NewEngine(ruleSet)
	assert.Empty(t, engine.FindMatches(ctx, txn))
}

func TestEngine_FindMatches_Deterministic(t *testing.T) {
	ctx := context.Background()
	txn := model.Transaction{Description: "SHELL OIL 57444 GAS", Amount: -55.00}

	ruleSet := []model.Rule{
		{ID: 1, Pattern: "SHELL", Type: model.MatchContains, Priority: 2, IsActive: true},
		{ID: 2, Pattern: "GAS", Type: model.MatchContains, Priority: 2, IsActive: true},
		{ID: 3, Pattern: "OIL", Type: model.MatchContains, Priority: 1, IsActive: true},
	}

	engine := NewEngine(ruleSet)
	first := engine.FindMatches(ctx, txn)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, engine.FindMatches(ctx, txn))
	}
}

func TestEngine_DefaultConfidenceByMatchType(t *testing.T) {
	exact := model.Rule{Type: model.MatchExact}
	starts := model.Rule{Type: model.MatchStartsWith}
	contains := model.Rule{Type: model.MatchContains}
	override := model.Rule{Type: model.MatchContains, ConfidenceScore: 0.99}

	assert.InDelta(t, 0.95, exact.EffectiveConfidence(), 1e-9)
	assert.InDelta(t, 0.90, starts.EffectiveConfidence(), 1e-9)
	assert.InDelta(t, 0.85, contains.EffectiveConfidence(), 1e-9)
	assert.InDelta(t, 0.99, override.EffectiveConfidence(), 1e-9)
}
