package engine

import (
	"context"

	"github.com/calloway/ledgerflow/internal/model"
)

// RuleSource provides a user's active categorization rules.
type RuleSource interface {
	GetActiveRules(ctx context.Context, userID string) ([]model.Rule, error)
}

// CategoryLookup resolves category metadata for enriching outcomes.
type CategoryLookup interface {
	GetCategory(ctx context.Context, categoryID string) (*model.Category, error)
}

// StageClassifier is the contract for pluggable classifiers (the
// statistical model and the language model). A nil result with a nil error
// means "no signal". Implementations must respect ctx cancellation.
type StageClassifier interface {
	Classify(ctx context.Context, txn model.Transaction) (*StageResult, error)
}

// CorrectionSink records user overrides of rule decisions, feeding rule
// health reporting. Write-only from the engine's perspective.
type CorrectionSink interface {
	RecordCorrection(ctx context.Context, ruleID int64, transactionID, newCategoryID string) error
}

// StageResult is a single stage's classification signal.
type StageResult struct {
	CategoryID string
	RuleID     int64 // Set by the rules stage, zero otherwise
	Confidence float64
}

// Stage is one classifier in the pipeline. Classify returns nil when the
// stage has no signal for the transaction.
type Stage interface {
	Name() string
	Classify(ctx context.Context, txn model.Transaction) (*StageResult, error)
}
