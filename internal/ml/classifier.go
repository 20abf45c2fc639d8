// Package ml implements the statistical classification stage: a token
// frequency model trained on the user's own categorized history. It runs
// after the deterministic stages and before the language model, catching
// merchants the user has categorized before under slightly different
// descriptions.
package ml

import (
	"context"
	"log/slog"
	"math"

	"github.com/calloway/ledgerflow/internal/engine"
	"github.com/calloway/ledgerflow/internal/model"
	"github.com/calloway/ledgerflow/internal/textsim"
)

// Config holds the training and scoring thresholds.
type Config struct {
	// MinExamples is the smallest history worth training on.
	MinExamples int

	// MinPosterior rejects predictions the model is not sure about.
	MinPosterior float64

	// MaxConfidence caps the stage's output. The model generalizes from
	// history, so it never auto-applies on its own.
	MaxConfidence float64
}

// DefaultConfig returns the standard model settings.
func DefaultConfig() Config {
	return Config{
		MinExamples:   20,
		MinPosterior:  0.65,
		MaxConfidence: 0.85,
	}
}

// Classifier is a naive Bayes model over description tokens.
type Classifier struct {
	tokenCounts map[string]map[string]float64 // category -> token -> count
	totalTokens map[string]float64
	priors      map[string]float64
	vocabSize   float64
	cfg         Config
}

// Train builds a model from categorized history. Returns nil when the
// history is too small to generalize from; a nil classifier is a disabled
// stage.
func Train(history []model.Transaction, cfg Config) *Classifier {
	var usable int
	for _, txn := range history {
		if txn.CategoryID != "" {
			usable++
		}
	}
	if usable < cfg.MinExamples {
		slog.Debug("statistical model disabled, history too small",
			"examples", usable, "required", cfg.MinExamples)
		return nil
	}

	c := &Classifier{
		tokenCounts: make(map[string]map[string]float64),
		totalTokens: make(map[string]float64),
		priors:      make(map[string]float64),
		cfg:         cfg,
	}

	vocab := make(map[string]bool)
	var examples float64
	for _, txn := range history {
		if txn.CategoryID == "" {
			continue
		}
		tokens := textsim.Tokenize(txn.DisplayDescription())
		if len(tokens) == 0 {
			continue
		}
		examples++
		c.priors[txn.CategoryID]++
		if c.tokenCounts[txn.CategoryID] == nil {
			c.tokenCounts[txn.CategoryID] = make(map[string]float64)
		}
		for _, token := range tokens {
			vocab[token] = true
			c.tokenCounts[txn.CategoryID][token]++
			c.totalTokens[txn.CategoryID]++
		}
	}
	if examples == 0 || len(vocab) == 0 {
		return nil
	}

	for categoryID := range c.priors {
		c.priors[categoryID] /= examples
	}
	c.vocabSize = float64(len(vocab))

	slog.Debug("statistical model trained",
		"examples", int(examples),
		"categories", len(c.priors),
		"vocabulary", len(vocab))
	return c
}

// Classify predicts a category for the transaction. Returns nil when the
// model has no confident prediction.
func (c *Classifier) Classify(_ context.Context, txn model.Transaction) (*engine.StageResult, error) {
	tokens := textsim.Tokenize(txn.DisplayDescription())
	if len(tokens) == 0 {
		return nil, nil
	}

	// Log-space naive Bayes with add-one smoothing.
	logScores := make(map[string]float64, len(c.priors))
	for categoryID, prior := range c.priors {
		score := math.Log(prior)
		counts := c.tokenCounts[categoryID]
		denom := c.totalTokens[categoryID] + c.vocabSize
		for _, token := range tokens {
			score += math.Log((counts[token] + 1) / denom)
		}
		logScores[categoryID] = score
	}

	best, posterior := normalizeScores(logScores)
	if posterior < c.cfg.MinPosterior {
		return nil, nil
	}

	return &engine.StageResult{
		CategoryID: best,
		Confidence: math.Min(posterior, c.cfg.MaxConfidence),
	}, nil
}

// normalizeScores converts log scores to a posterior for the best category.
func normalizeScores(logScores map[string]float64) (string, float64) {
	var best string
	maxScore := math.Inf(-1)
	for categoryID, score := range logScores {
		if score > maxScore || (score == maxScore && categoryID < best) {
			best = categoryID
			maxScore = score
		}
	}

	var total float64
	for _, score := range logScores {
		total += math.Exp(score - maxScore)
	}
	if total == 0 {
		return best, 0
	}
	return best, 1 / total
}
