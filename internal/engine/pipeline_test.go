package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calloway/ledgerflow/internal/model"
)

func newTestPipeline(ruleSet []model.Rule, ml, llm StageClassifier) *Pipeline {
	cfg := DefaultConfig()
	cfg.Workers = 2
	return New(&fakeRuleSource{rules: ruleSet}, nil, nil, ml, llm, cfg)
}

func TestClassifyBatch_AutoAppliedByRule(t *testing.T) {
	ctx := context.Background()
	ruleSet := []model.Rule{
		{ID: 1, Pattern: "WALMART", Type: model.MatchContains, ConfidenceScore: 0.98, CategoryID: "groceries", IsActive: true},
	}
	pipeline := newTestPipeline(ruleSet, nil, nil)

	outcomes, metrics, err := pipeline.ClassifyBatch(ctx, []model.Transaction{
		{ID: "t1", Description: "WALMART STORE #4521", Amount: -84.12},
	}, "user1")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	assert.Equal(t, model.OutcomeAutoApplied, outcomes[0].State)
	assert.Equal(t, "groceries", outcomes[0].CategoryID)
	assert.Equal(t, StageRules, outcomes[0].Source)
	assert.Equal(t, int64(1), outcomes[0].RuleID)
	assert.InDelta(t, 0.98, outcomes[0].Confidence, 1e-9)
	assert.Equal(t, 1, metrics.AutoApplied)
	assert.Equal(t, 1, metrics.ByStage[StageRules])
}

func TestClassifyBatch_CandidateHeldForReview(t *testing.T) {
	ctx := context.Background()
	ruleSet := []model.Rule{
		{ID: 1, Pattern: "TARGET", Type: model.MatchContains, ConfidenceScore: 0.80, CategoryID: "shopping", IsActive: true},
	}
	pipeline := newTestPipeline(ruleSet, nil, nil)

	outcomes, metrics, err := pipeline.ClassifyBatch(ctx, []model.Transaction{
		{ID: "t1", Description: "TARGET STORE", Amount: -31.00},
	}, "user1")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	assert.Equal(t, model.OutcomeCandidate, outcomes[0].State)
	assert.Equal(t, model.CandidatePending, outcomes[0].Status)
	assert.InDelta(t, 0.80, outcomes[0].Confidence, 1e-9)
	assert.Equal(t, 1, metrics.Candidates)
}

func TestClassifyBatch_UnresolvedWhenNoSignal(t *testing.T) {
	ctx := context.Background()
	pipeline := newTestPipeline(nil, nil, nil)

	outcomes, metrics, err := pipeline.ClassifyBatch(ctx, []model.Transaction{
		{ID: "t1", Description: "UNKNOWN MERCHANT XYZ", Amount: -12.00},
	}, "user1")
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	assert.Equal(t, model.OutcomeUnresolved, outcomes[0].State)
	assert.Empty(t, outcomes[0].CategoryID)
	assert.Equal(t, 1, metrics.Unresolved)
}

func TestClassifyBatch_ShortCircuitSkipsLaterStages(t *testing.T) {
	ctx := context.Background()
	ruleSet := []model.Rule{
		{ID: 1, Pattern: "WALMART", Type: model.MatchContains, ConfidenceScore: 0.98, CategoryID: "groceries", IsActive: true},
	}
	ml := &fakeClassifier{result: &StageResult{CategoryID: "misc", Confidence: 0.9}}
	llm := &fakeClassifier{result: &StageResult{CategoryID: "misc", Confidence: 0.9}}
	pipeline := newTestPipeline(ruleSet, ml, llm)

	_, _, err := pipeline.ClassifyBatch(ctx, []model.Transaction{
		{ID: "t1", Description: "WALMART #1", Amount: -10},
		{ID: "t2", Description: "WALMART #2", Amount: -20},
	}, "user1")
	require.NoError(t, err)

	assert.Zero(t, ml.calls.Load())
	assert.Zero(t, llm.calls.Load())
}

func TestClassifyBatch_OneOutcomePerTransaction(t *testing.T) {
	ctx := context.Background()
	ruleSet := []model.Rule{
		{ID: 1, Pattern: "COFFEE", Type: model.MatchContains, ConfidenceScore: 0.97, CategoryID: "dining", IsActive: true},
	}
	pipeline := newTestPipeline(ruleSet, nil, nil)

	txns := make([]model.Transaction, 50)
	for i := range txns {
		txns[i] = model.Transaction{ID: string(rune('a' + i%26)) + string(rune('0' + i/26)), Description: "COFFEE SHOP"}
	}
	outcomes, metrics, err := pipeline.ClassifyBatch(ctx, txns, "user1")
	require.NoError(t, err)

	require.Len(t, outcomes, len(txns))
	for i, outcome := range outcomes {
		assert.Equal(t, txns[i].ID, outcome.TransactionID)
		assert.Equal(t, model.OutcomeAutoApplied, outcome.State)
	}
	assert.Equal(t, len(txns), metrics.Total)
	assert.Equal(t, len(txns), metrics.AutoApplied)
}

func TestClassifyBatch_EarlierStageWinsConfidenceTies(t *testing.T) {
	ctx := context.Background()
	ruleSet := []model.Rule{
		{ID: 1, Pattern: "GYM", Type: model.MatchContains, ConfidenceScore: 0.60, CategoryID: "fitness", IsActive: true},
	}
	ml := &fakeClassifier{result: &StageResult{CategoryID: "health", Confidence: 0.60}}
	pipeline := newTestPipeline(ruleSet, ml, nil)

	outcomes, _, err := pipeline.ClassifyBatch(ctx, []model.Transaction{
		{ID: "t1", Description: "GYM MEMBERSHIP", Amount: -45},
	}, "user1")
	require.NoError(t, err)

	// Equal confidence from a later stage must not displace the kept
	// candidate.
	assert.Equal(t, "fitness", outcomes[0].CategoryID)
	assert.Equal(t, StageRules, outcomes[0].Source)
}

func TestClassifyBatch_StrongerLaterStageReplacesCandidate(t *testing.T) {
	ctx := context.Background()
	ruleSet := []model.Rule{
		{ID: 1, Pattern: "GYM", Type: model.MatchContains, ConfidenceScore: 0.60, CategoryID: "fitness", IsActive: true},
	}
	ml := &fakeClassifier{result: &StageResult{CategoryID: "health", Confidence: 0.85}}
	pipeline := newTestPipeline(ruleSet, ml, nil)

	outcomes, _, err := pipeline.ClassifyBatch(ctx, []model.Transaction{
		{ID: "t1", Description: "GYM MEMBERSHIP", Amount: -45},
	}, "user1")
	require.NoError(t, err)

	assert.Equal(t, "health", outcomes[0].CategoryID)
	assert.Equal(t, StageML, outcomes[0].Source)
	assert.Equal(t, model.OutcomeCandidate, outcomes[0].State)
}

func TestClassifyBatch_StageFailureDemotedToNoSignal(t *testing.T) {
	ctx := context.Background()
	ml := &fakeClassifier{err: errors.New("model endpoint unavailable")}
	llm := &fakeClassifier{result: &StageResult{CategoryID: "dining", Confidence: 0.70}}
	pipeline := newTestPipeline(nil, ml, llm)

	outcomes, metrics, err := pipeline.ClassifyBatch(ctx, []model.Transaction{
		{ID: "t1", Description: "SOME CAFE", Amount: -9},
	}, "user1")
	require.NoError(t, err)

	// The failing ML stage falls through to the LLM stage.
	assert.Equal(t, model.OutcomeCandidate, outcomes[0].State)
	assert.Equal(t, "dining", outcomes[0].CategoryID)
	assert.Equal(t, 1, metrics.StageFailures)
}

func TestClassifyBatch_PanickingStageDemotedToNoSignal(t *testing.T) {
	ctx := context.Background()
	ml := &panickingClassifier{}
	llm := &fakeClassifier{result: &StageResult{CategoryID: "dining", Confidence: 0.70}}
	pipeline := newTestPipeline(nil, ml, llm)

	outcomes, metrics, err := pipeline.ClassifyBatch(ctx, []model.Transaction{
		{ID: "t1", Description: "SOME CAFE", Amount: -9},
	}, "user1")
	require.NoError(t, err)

	// The panicking ML stage counts as a failure and falls through.
	assert.Equal(t, model.OutcomeCandidate, outcomes[0].State)
	assert.Equal(t, "dining", outcomes[0].CategoryID)
	assert.Equal(t, 1, metrics.StageFailures)
}

func TestClassifyBatch_PanickingOnlyStageLeavesUnresolved(t *testing.T) {
	ctx := context.Background()
	pipeline := newTestPipeline(nil, &panickingClassifier{}, nil)

	outcomes, metrics, err := pipeline.ClassifyBatch(ctx, []model.Transaction{
		{ID: "t1", Description: "SOME CAFE", Amount: -9},
		{ID: "t2", Description: "ANOTHER CAFE", Amount: -4},
	}, "user1")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	for _, outcome := range outcomes {
		assert.Equal(t, model.OutcomeUnresolved, outcome.State)
	}
	assert.Equal(t, 2, metrics.StageFailures)
}

func TestClassifyBatch_StageTimeoutBoundsBlockingStage(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.StageTimeout = 20 * time.Millisecond
	pipeline := New(&fakeRuleSource{}, nil, nil, &blockingClassifier{}, nil, cfg)

	start := time.Now()
	outcomes, metrics, err := pipeline.ClassifyBatch(ctx, []model.Transaction{
		{ID: "t1", Description: "SLOW MERCHANT", Amount: -5},
	}, "user1")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, model.OutcomeUnresolved, outcomes[0].State)
	assert.Equal(t, 1, metrics.StageFailures)
}

func TestClassifyBatch_ContextCancellationStopsBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultConfig()
	cfg.Workers = 1
	pipeline := New(&fakeRuleSource{}, nil, nil, &blockingClassifier{}, nil, cfg)

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	txns := make([]model.Transaction, 200)
	for i := range txns {
		txns[i] = model.Transaction{ID: string(rune('a'+i%26)) + string(rune('0'+i/26)), Description: "X"}
	}
	_, _, err := pipeline.ClassifyBatch(ctx, txns, "user1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyBatch_BankCategoryStage(t *testing.T) {
	ctx := context.Background()
	pipeline := newTestPipeline(nil, nil, nil)

	outcomes, _, err := pipeline.ClassifyBatch(ctx, []model.Transaction{
		{ID: "t1", Description: "KROGER 221", BankCategory: "Supermarkets", Amount: -54.30},
	}, "user1")
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeCandidate, outcomes[0].State)
	assert.Equal(t, "groceries", outcomes[0].CategoryID)
	assert.Equal(t, StageBankCategory, outcomes[0].Source)
	assert.InDelta(t, 0.75, outcomes[0].Confidence, 1e-9)
}

func TestClassifyBatch_RepeatedRunsIdentical(t *testing.T) {
	ctx := context.Background()
	ruleSet := []model.Rule{
		{ID: 1, Pattern: "SHELL", Type: model.MatchContains, ConfidenceScore: 0.70, CategoryID: "fuel", IsActive: true},
		{ID: 2, Pattern: "OIL", Type: model.MatchContains, ConfidenceScore: 0.90, CategoryID: "auto", IsActive: true},
	}
	pipeline := newTestPipeline(ruleSet, nil, nil)

	txns := []model.Transaction{
		{ID: "t1", Description: "SHELL OIL 57444", Amount: -60},
		{ID: "t2", Description: "SHELL STATION", Amount: -42},
	}

	first, firstMetrics, err := pipeline.ClassifyBatch(ctx, txns, "user1")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, againMetrics, err := pipeline.ClassifyBatch(ctx, txns, "user1")
		require.NoError(t, err)
		for j := range first {
			assert.Equal(t, first[j].CategoryID, again[j].CategoryID)
			assert.Equal(t, first[j].State, again[j].State)
			assert.Equal(t, first[j].Confidence, again[j].Confidence)
		}
		assert.Equal(t, firstMetrics.AutoApplied, againMetrics.AutoApplied)
		assert.Equal(t, firstMetrics.Candidates, againMetrics.Candidates)
	}
}

func TestClassifyBatch_CategoryEnrichment(t *testing.T) {
	ctx := context.Background()
	ruleSet := []model.Rule{
		{ID: 1, Pattern: "WALMART", Type: model.MatchContains, ConfidenceScore: 0.98, CategoryID: "groceries", IsActive: true},
	}
	lookup := &fakeCategoryLookup{categories: map[string]model.Category{
		"groceries": {ID: "groceries", Name: "Groceries", Color: "#4caf50"},
	}}
	cfg := DefaultConfig()
	pipeline := New(&fakeRuleSource{rules: ruleSet}, lookup, nil, nil, nil, cfg)

	outcomes, _, err := pipeline.ClassifyBatch(ctx, []model.Transaction{
		{ID: "t1", Description: "WALMART", Amount: -10},
	}, "user1")
	require.NoError(t, err)

	assert.Equal(t, "Groceries", outcomes[0].CategoryName)
}

func TestClassifyBatch_RuleSourceErrorFailsFast(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	pipeline := New(&fakeRuleSource{err: errors.New("db locked")}, nil, nil, nil, nil, cfg)

	_, _, err := pipeline.ClassifyBatch(ctx, []model.Transaction{{ID: "t1"}}, "user1")
	assert.Error(t, err)
}

func TestRecordCorrection_ForwardsToSink(t *testing.T) {
	ctx := context.Background()
	sink := &fakeCorrectionSink{}
	pipeline := New(&fakeRuleSource{}, nil, sink, nil, nil, DefaultConfig())

	require.NoError(t, pipeline.RecordCorrection(ctx, 7, "t1", "dining"))
	require.Len(t, sink.corrections, 1)
	assert.Equal(t, int64(7), sink.corrections[0].ruleID)
	assert.Equal(t, "t1", sink.corrections[0].transactionID)
	assert.Equal(t, "dining", sink.corrections[0].newCategoryID)
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, clamp(-0.3))
	assert.Equal(t, 1.0, clamp(1.7))
	assert.Equal(t, 0.42, clamp(0.42))
}
