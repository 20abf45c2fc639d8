package storage

import (
	"context"
	"fmt"

	"github.com/calloway/ledgerflow/internal/model"
)

// SaveOutcomes persists a batch of classification outcomes. Auto-applied
// outcomes also set the transaction's category, and rule-sourced outcomes
// bump the matching rule's match count.
func (s *SQLiteStorage) SaveOutcomes(ctx context.Context, outcomes []model.ClassificationOutcome) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, outcome := range outcomes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO outcomes (
				transaction_id, category_id, source, state, status,
				rule_id, confidence, classified_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(transaction_id) DO UPDATE SET
				category_id = excluded.category_id,
				source = excluded.source,
				state = excluded.state,
				status = excluded.status,
				rule_id = excluded.rule_id,
				confidence = excluded.confidence,
				classified_at = excluded.classified_at
		`, outcome.TransactionID, nullIfEmpty(outcome.CategoryID), outcome.Source,
			string(outcome.State), string(outcome.Status), outcome.RuleID,
			outcome.Confidence, outcome.ClassifiedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to save outcome for %s: %w", outcome.TransactionID, err)
		}

		if outcome.State == model.OutcomeAutoApplied {
			if _, err := tx.ExecContext(ctx,
				`UPDATE transactions SET category_id = ? WHERE id = ?`,
				outcome.CategoryID, outcome.TransactionID); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to apply category for %s: %w", outcome.TransactionID, err)
			}
		}
		if outcome.RuleID != 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE rules SET match_count = match_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
				outcome.RuleID); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to record rule match: %w", err)
			}
		}
	}

	return tx.Commit()
}

// ResolveCandidate accepts or rejects a pending candidate outcome. Accepted
// candidates also apply the category to the transaction.
func (s *SQLiteStorage) ResolveCandidate(ctx context.Context, transactionID string, accept bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	status := model.CandidateRejected
	if accept {
		status = model.CandidateAccepted
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE outcomes SET status = ?
		WHERE transaction_id = ? AND state = ? AND status = ?
	`, string(status), transactionID, string(model.OutcomeCandidate), string(model.CandidatePending))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to resolve candidate: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		_ = tx.Rollback()
		return fmt.Errorf("no pending candidate for transaction %q", transactionID)
	}

	if accept {
		if _, err := tx.ExecContext(ctx, `
			UPDATE transactions SET category_id = (
				SELECT category_id FROM outcomes WHERE transaction_id = ?
			) WHERE id = ?
		`, transactionID, transactionID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to apply accepted category: %w", err)
		}
	}
	return tx.Commit()
}
