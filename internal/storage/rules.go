package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calloway/ledgerflow/internal/model"
)

// CreateRule inserts a rule and fills in its generated ID and timestamps.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if rule.CategoryID == "" {
		return fmt.Errorf("rule must have a target category")
	}
	if rule.Pattern == "" && len(rule.Conditions) == 0 {
		return fmt.Errorf("rule must have a pattern or at least one condition")
	}

	conditions, err := marshalConditions(rule.Conditions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO rules (
			user_id, name, pattern, match_type, conditions, logic,
			category_id, priority, confidence_score, is_active
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		rule.UserID, rule.Name, rule.Pattern, string(rule.Type), conditions,
		string(rule.Logic), rule.CategoryID, rule.Priority,
		rule.ConfidenceScore, rule.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}
	rule.ID = id
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = rule.CreatedAt
	return nil
}

// GetActiveRules returns the user's active rules. Implements
// engine.RuleSource.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context, userID string) ([]model.Rule, error) {
	return s.queryRules(ctx, `WHERE user_id = ? AND is_active = 1 ORDER BY priority, id`, userID)
}

// ListRules returns every rule belonging to the user.
func (s *SQLiteStorage) ListRules(ctx context.Context, userID string) ([]model.Rule, error) {
	return s.queryRules(ctx, `WHERE user_id = ? ORDER BY priority, id`, userID)
}

func (s *SQLiteStorage) queryRules(ctx context.Context, where string, args ...any) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, name, pattern, match_type, conditions, logic,
			category_id, priority, confidence_score, match_count,
			correction_count, is_active, created_at, updated_at
		FROM rules ` + where

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ruleSet []model.Rule
	for rows.Next() {
		var rule model.Rule
		var name, pattern, matchType, conditions, logic sql.NullString
		if err := rows.Scan(
			&rule.ID, &rule.UserID, &name, &pattern, &matchType, &conditions,
			&logic, &rule.CategoryID, &rule.Priority, &rule.ConfidenceScore,
			&rule.MatchCount, &rule.CorrectionCount, &rule.IsActive,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule.Name = name.String
		rule.Pattern = pattern.String
		rule.Type = model.MatchType(matchType.String)
		rule.Logic = model.RuleLogic(logic.String)
		if rule.Conditions, err = unmarshalConditions(conditions.String); err != nil {
			return nil, fmt.Errorf("failed to decode conditions for rule %d: %w", rule.ID, err)
		}
		ruleSet = append(ruleSet, rule)
	}
	return ruleSet, rows.Err()
}

// RecordRuleMatches increments match counts for rules that produced
// persisted outcomes.
func (s *SQLiteStorage) RecordRuleMatches(ctx context.Context, ruleIDs []int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	for _, id := range ruleIDs {
		if id == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE rules SET match_count = match_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			id); err != nil {
			return fmt.Errorf("failed to record match for rule %d: %w", id, err)
		}
	}
	return nil
}

// RecordCorrection stores a user override of a rule decision and bumps the
// rule's correction count. Implements engine.CorrectionSink.
func (s *SQLiteStorage) RecordCorrection(ctx context.Context, ruleID int64, transactionID, newCategoryID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO corrections (rule_id, transaction_id, new_category_id) VALUES (?, ?, ?)`,
		ruleID, transactionID, newCategoryID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record correction: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE rules SET correction_count = correction_count + 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		ruleID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to update rule correction count: %w", err)
	}
	return tx.Commit()
}

func marshalConditions(conditions []model.RuleCondition) (string, error) {
	if len(conditions) == 0 {
		return "", nil
	}
	data, err := json.Marshal(conditions)
	if err != nil {
		return "", fmt.Errorf("failed to encode conditions: %w", err)
	}
	return string(data), nil
}

func unmarshalConditions(data string) ([]model.RuleCondition, error) {
	if data == "" {
		return nil, nil
	}
	var conditions []model.RuleCondition
	if err := json.Unmarshal([]byte(data), &conditions); err != nil {
		return nil, err
	}
	return conditions, nil
}
