package engine

import (
	"context"
	"time"

	"github.com/calloway/ledgerflow/internal/model"
	"github.com/calloway/ledgerflow/internal/rules"
	"github.com/calloway/ledgerflow/internal/textsim"
)

// StageRules and friends are the pipeline stage names, recorded on outcomes
// as the decision source.
const (
	StageRules        = "rules"
	StageBankCategory = "bank_category"
	StageML           = "ml"
	StageLLM          = "llm"
)

// RulesStage evaluates user-authored rules. Deterministic and cheap, it
// runs first and carries the highest trust.
type RulesStage struct {
	engine *rules.Engine
}

// NewRulesStage creates the rules stage over an already-built rule engine.
func NewRulesStage(engine *rules.Engine) *RulesStage {
	return &RulesStage{engine: engine}
}

// Name implements Stage.
func (s *RulesStage) Name() string { return StageRules }

// Classify returns the first match in rule order: priority ascending, then
// confidence descending, then rule ID.
func (s *RulesStage) Classify(ctx context.Context, txn model.Transaction) (*StageResult, error) {
	matches := s.engine.FindMatches(ctx, txn)
	if len(matches) == 0 {
		return nil, nil
	}
	best := matches[0]
	return &StageResult{
		CategoryID: best.Rule.CategoryID,
		RuleID:     best.Rule.ID,
		Confidence: best.Confidence,
	}, nil
}

// BankCategoryStage maps the category hint supplied by the bank or import
// source to an internal category. The signal is free but only as good as
// the bank's own labeling, so it carries moderate confidence.
type BankCategoryStage struct {
	mappings   map[string]string
	confidence float64
}

// NewBankCategoryStage creates the stage with a normalized-hint to
// category-ID mapping table.
func NewBankCategoryStage(mappings map[string]string, confidence float64) *BankCategoryStage {
	normalized := make(map[string]string, len(mappings))
	for hint, categoryID := range mappings {
		normalized[textsim.Normalize(hint)] = categoryID
	}
	return &BankCategoryStage{mappings: normalized, confidence: confidence}
}

// Name implements Stage.
func (s *BankCategoryStage) Name() string { return StageBankCategory }

// Classify implements Stage.
func (s *BankCategoryStage) Classify(_ context.Context, txn model.Transaction) (*StageResult, error) {
	hint := textsim.Normalize(txn.BankCategory)
	if hint == "" {
		return nil, nil
	}
	categoryID, ok := s.mappings[hint]
	if !ok {
		return nil, nil
	}
	return &StageResult{CategoryID: categoryID, Confidence: s.confidence}, nil
}

// DefaultBankCategoryMappings returns the seed mapping from common
// bank-supplied category labels to internal category IDs.
func DefaultBankCategoryMappings() map[string]string {
	return map[string]string{
		"groceries":            "groceries",
		"supermarkets":         "groceries",
		"restaurants":          "dining",
		"fast food":            "dining",
		"gas":                  "transportation",
		"fuel":                 "transportation",
		"utilities":            "utilities",
		"telecommunications":   "utilities",
		"entertainment":        "entertainment",
		"travel":               "travel",
		"airlines":             "travel",
		"lodging":              "travel",
		"medical":              "healthcare",
		"pharmacies":           "healthcare",
		"insurance":            "insurance",
		"mortgage and rent":    "housing",
		"home improvement":     "housing",
		"payroll":              "income",
		"deposit":              "income",
		"service charges fees": "fees",
	}
}

// classifierStage adapts a pluggable StageClassifier (ML or LLM) into the
// pipeline, bounding each call with a timeout so a slow external model can
// never stall the batch.
type classifierStage struct {
	classifier StageClassifier
	name       string
	timeout    time.Duration
}

// NewClassifierStage wraps an external classifier as a named stage.
func NewClassifierStage(name string, classifier StageClassifier, timeout time.Duration) Stage {
	return &classifierStage{
		classifier: classifier,
		name:       name,
		timeout:    timeout,
	}
}

func (s *classifierStage) Name() string { return s.name }

func (s *classifierStage) Classify(ctx context.Context, txn model.Transaction) (*StageResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.classifier.Classify(ctx, txn)
}
