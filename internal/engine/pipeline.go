// Package engine implements the staged classification pipeline that assigns
// a spending category to every incoming transaction.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/calloway/ledgerflow/internal/model"
	"github.com/calloway/ledgerflow/internal/rules"
)

// Config holds the pipeline thresholds and batch settings.
type Config struct {
	// AutoApplyThreshold commits a classification without review and
	// short-circuits the remaining stages.
	AutoApplyThreshold float64

	// CandidateThreshold is the minimum confidence worth holding for
	// user confirmation.
	CandidateThreshold float64

	// BankCategoryConfidence is assigned to bank-hint matches.
	BankCategoryConfidence float64

	// StageTimeout bounds each external classifier call.
	StageTimeout time.Duration

	// Workers is the batch parallelism. Classification of each
	// transaction is independent, so this only affects throughput.
	Workers int
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		AutoApplyThreshold:     0.95,
		CandidateThreshold:     0.50,
		BankCategoryConfidence: 0.75,
		StageTimeout:           30 * time.Second,
		Workers:                4,
	}
}

// BatchMetrics summarizes one ClassifyBatch run.
type BatchMetrics struct {
	ByStage       map[string]int // Resolved outcomes per stage name
	Total         int
	AutoApplied   int
	Candidates    int
	Unresolved    int
	StageFailures int
}

func newBatchMetrics() BatchMetrics {
	return BatchMetrics{ByStage: make(map[string]int)}
}

func (m *BatchMetrics) merge(other BatchMetrics) {
	m.Total += other.Total
	m.AutoApplied += other.AutoApplied
	m.Candidates += other.Candidates
	m.Unresolved += other.Unresolved
	m.StageFailures += other.StageFailures
	for stage, n := range other.ByStage {
		m.ByStage[stage] += n
	}
}

// Pipeline routes transactions through an ordered list of classifier
// stages: rules, bank category, statistical model, language model. The
// order is fixed by cost and reliability; cheap deterministic stages run
// first and the expensive language model only sees leftovers.
type Pipeline struct {
	ruleSource    RuleSource
	categories    CategoryLookup
	corrections   CorrectionSink
	mlClassifier  StageClassifier
	llmClassifier StageClassifier
	bankMappings  map[string]string
	cfg           Config
}

// New creates a pipeline. The ML and LLM classifiers may be nil; a nil
// classifier is a disabled stage, not an error. categories may be nil when
// outcome enrichment is not wanted.
func New(ruleSource RuleSource, categories CategoryLookup, corrections CorrectionSink, ml, llm StageClassifier, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Pipeline{
		ruleSource:    ruleSource,
		categories:    categories,
		corrections:   corrections,
		mlClassifier:  ml,
		llmClassifier: llm,
		bankMappings:  DefaultBankCategoryMappings(),
		cfg:           cfg,
	}
}

// SetBankCategoryMappings replaces the bank-hint mapping table.
func (p *Pipeline) SetBankCategoryMappings(mappings map[string]string) {
	p.bankMappings = mappings
}

// ClassifyBatch classifies every transaction and returns exactly one
// outcome per input alongside batch-level metrics. A failing stage demotes
// only the affected transaction; the batch always completes.
func (p *Pipeline) ClassifyBatch(ctx context.Context, txns []model.Transaction, userID string) ([]model.ClassificationOutcome, BatchMetrics, error) {
	metrics := newBatchMetrics()

	activeRules, err := p.ruleSource.GetActiveRules(ctx, userID)
	if err != nil {
		return nil, metrics, fmt.Errorf("failed to load rules for user %s: %w", userID, err)
	}
	stages := p.buildStages(activeRules)

	slog.Info("starting classification batch",
		"user_id", userID,
		"transactions", len(txns),
		"rules", len(activeRules),
		"stages", len(stages))

	outcomes := make([]model.ClassificationOutcome, len(txns))

	workers := p.cfg.Workers
	if workers > len(txns) {
		workers = len(txns)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	partials := make([]BatchMetrics, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			local := newBatchMetrics()
			for i := range jobs {
				outcomes[i] = p.classifyOne(ctx, stages, txns[i], &local)
			}
			partials[worker] = local
		}(w)
	}

	for i := range txns {
		select {
		case jobs <- i:
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return nil, metrics, ctx.Err()
		}
	}
	close(jobs)
	wg.Wait()

	// Merge per-worker partials; a shared counter would lose updates.
	for _, partial := range partials {
		metrics.merge(partial)
	}

	p.enrichCategories(ctx, outcomes)

	slog.Info("classification batch complete",
		"user_id", userID,
		"auto_applied", metrics.AutoApplied,
		"candidates", metrics.Candidates,
		"unresolved", metrics.Unresolved,
		"stage_failures", metrics.StageFailures)

	return outcomes, metrics, nil
}

func (p *Pipeline) buildStages(activeRules []model.Rule) []Stage {
	stages := []Stage{
		NewRulesStage(rules.NewEngine(activeRules)),
		NewBankCategoryStage(p.bankMappings, p.cfg.BankCategoryConfidence),
	}
	if p.mlClassifier != nil {
		stages = append(stages, NewClassifierStage(StageML, p.mlClassifier, p.cfg.StageTimeout))
	}
	if p.llmClassifier != nil {
		stages = append(stages, NewClassifierStage(StageLLM, p.llmClassifier, p.cfg.StageTimeout))
	}
	return stages
}

// classifyOne walks the stages for a single transaction. A result at or
// above the auto-apply threshold stops the chain; otherwise the best
// candidate is kept, with the earlier stage winning confidence ties. Stage
// errors count as "no signal" for that stage only.
func (p *Pipeline) classifyOne(ctx context.Context, stages []Stage, txn model.Transaction, metrics *BatchMetrics) model.ClassificationOutcome {
	metrics.Total++

	var best *StageResult
	var bestStage string

	for _, stage := range stages {
		result, err := runStage(ctx, stage, txn)
		if err != nil {
			metrics.StageFailures++
			slog.Warn("classifier stage failed",
				"stage", stage.Name(),
				"transaction_id", txn.ID,
				"error", err)
			continue
		}
		if result == nil || result.CategoryID == "" {
			continue
		}

		confidence := clamp(result.Confidence)
		if confidence >= p.cfg.AutoApplyThreshold {
			metrics.AutoApplied++
			metrics.ByStage[stage.Name()]++
			return model.ClassificationOutcome{
				TransactionID: txn.ID,
				CategoryID:    result.CategoryID,
				Source:        stage.Name(),
				State:         model.OutcomeAutoApplied,
				RuleID:        result.RuleID,
				Confidence:    confidence,
				ClassifiedAt:  time.Now().UTC(),
			}
		}

		if confidence >= p.cfg.CandidateThreshold && (best == nil || confidence > best.Confidence) {
			kept := *result
			kept.Confidence = confidence
			best = &kept
			bestStage = stage.Name()
		}
	}

	if best != nil {
		metrics.Candidates++
		metrics.ByStage[bestStage]++
		return model.ClassificationOutcome{
			TransactionID: txn.ID,
			CategoryID:    best.CategoryID,
			Source:        bestStage,
			State:         model.OutcomeCandidate,
			Status:        model.CandidatePending,
			RuleID:        best.RuleID,
			Confidence:    best.Confidence,
			ClassifiedAt:  time.Now().UTC(),
		}
	}

	metrics.Unresolved++
	return model.ClassificationOutcome{
		TransactionID: txn.ID,
		State:         model.OutcomeUnresolved,
		ClassifiedAt:  time.Now().UTC(),
	}
}

// runStage invokes a single stage, converting a panic in a pluggable
// classifier into an error. A buggy stage demotes one transaction, it never
// takes down the batch.
func runStage(ctx context.Context, stage Stage, txn model.Transaction) (result *StageResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("classifier stage panicked: %v", r)
		}
	}()
	return stage.Classify(ctx, txn)
}

// enrichCategories fills in category names for display. Lookup failures
// leave the name empty; they never affect the decision itself.
func (p *Pipeline) enrichCategories(ctx context.Context, outcomes []model.ClassificationOutcome) {
	if p.categories == nil {
		return
	}
	cache := make(map[string]string)
	for i := range outcomes {
		id := outcomes[i].CategoryID
		if id == "" {
			continue
		}
		if name, ok := cache[id]; ok {
			outcomes[i].CategoryName = name
			continue
		}
		category, err := p.categories.GetCategory(ctx, id)
		if err != nil || category == nil {
			cache[id] = ""
			continue
		}
		cache[id] = category.Name
		outcomes[i].CategoryName = category.Name
	}
}

// RecordCorrection forwards a user override to the correction sink,
// incrementing the rule's correction count for health reporting.
func (p *Pipeline) RecordCorrection(ctx context.Context, ruleID int64, transactionID, newCategoryID string) error {
	if p.corrections == nil {
		return nil
	}
	return p.corrections.RecordCorrection(ctx, ruleID, transactionID, newCategoryID)
}

func clamp(confidence float64) float64 {
	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}
