package engine

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/calloway/ledgerflow/internal/model"
)

type fakeRuleSource struct {
	err   error
	rules []model.Rule
}

func (f *fakeRuleSource) GetActiveRules(_ context.Context, _ string) ([]model.Rule, error) {
	return f.rules, f.err
}

type fakeCategoryLookup struct {
	categories map[string]model.Category
}

func (f *fakeCategoryLookup) GetCategory(_ context.Context, categoryID string) (*model.Category, error) {
	if cat, ok := f.categories[categoryID]; ok {
		return &cat, nil
	}
	return nil, errors.New("category not found")
}

// fakeClassifier returns a fixed result and counts calls, so tests can
// assert the short-circuit invariant.
type fakeClassifier struct {
	result *StageResult
	err    error
	calls  atomic.Int64
}

func (f *fakeClassifier) Classify(_ context.Context, _ model.Transaction) (*StageResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return nil, nil
	}
	result := *f.result
	return &result, nil
}

// panickingClassifier simulates a buggy pluggable stage.
type panickingClassifier struct{}

func (f *panickingClassifier) Classify(_ context.Context, _ model.Transaction) (*StageResult, error) {
	panic("classifier bug")
}

// blockingClassifier never answers on its own; it waits for its context, so
// tests can exercise the per-stage timeout and batch cancellation.
type blockingClassifier struct{}

func (f *blockingClassifier) Classify(ctx context.Context, _ model.Transaction) (*StageResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordedCorrection struct {
	ruleID        int64
	transactionID string
	newCategoryID string
}

type fakeCorrectionSink struct {
	corrections []recordedCorrection
}

func (f *fakeCorrectionSink) RecordCorrection(_ context.Context, ruleID int64, transactionID, newCategoryID string) error {
	f.corrections = append(f.corrections, recordedCorrection{ruleID, transactionID, newCategoryID})
	return nil
}
