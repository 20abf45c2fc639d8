package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/calloway/ledgerflow/internal/model"
)

// SaveSuggestions stores newly mined suggestions. Patterns that already
// exist for the user are left untouched, which keeps mining idempotent.
func (s *SQLiteStorage) SaveSuggestions(ctx context.Context, suggestions []model.RuleSuggestion) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	saved := 0
	for _, suggestion := range suggestions {
		samples, err := json.Marshal(suggestion.SampleTransactions)
		if err != nil {
			return saved, fmt.Errorf("failed to encode samples: %w", err)
		}
		result, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO suggestions (
				id, user_id, pattern, suggested_category_id, status,
				match_count, confidence, samples, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, suggestion.ID, suggestion.UserID, suggestion.Pattern,
			suggestion.SuggestedCategoryID, string(suggestion.Status),
			suggestion.MatchCount, suggestion.Confidence, string(samples),
			suggestion.CreatedAt)
		if err != nil {
			return saved, fmt.Errorf("failed to save suggestion %q: %w", suggestion.Pattern, err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			saved++
		}
	}
	return saved, nil
}

// ListPendingSuggestions returns pending suggestions, highest match count
// first.
func (s *SQLiteStorage) ListPendingSuggestions(ctx context.Context, userID string) ([]model.RuleSuggestion, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, pattern, suggested_category_id, status,
			match_count, confidence, samples, created_at, dismissed_at
		FROM suggestions
		WHERE user_id = ? AND status = 'PENDING'
		ORDER BY match_count DESC, pattern
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var suggestions []model.RuleSuggestion
	for rows.Next() {
		var suggestion model.RuleSuggestion
		var status string
		var samples sql.NullString
		var dismissedAt sql.NullTime
		if err := rows.Scan(
			&suggestion.ID, &suggestion.UserID, &suggestion.Pattern,
			&suggestion.SuggestedCategoryID, &status, &suggestion.MatchCount,
			&suggestion.Confidence, &samples, &suggestion.CreatedAt, &dismissedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		suggestion.Status = model.SuggestionStatus(status)
		if dismissedAt.Valid {
			t := dismissedAt.Time
			suggestion.DismissedAt = &t
		}
		if samples.Valid && samples.String != "" {
			if err := json.Unmarshal([]byte(samples.String), &suggestion.SampleTransactions); err != nil {
				return nil, fmt.Errorf("failed to decode samples for %q: %w", suggestion.Pattern, err)
			}
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions, rows.Err()
}

// ExcludedPatterns returns patterns that are pending or were rejected
// within the cooldown window. Implements suggest.SuggestionStore.
func (s *SQLiteStorage) ExcludedPatterns(ctx context.Context, userID string, now time.Time) (map[string]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	cutoff := now.Add(-rejectionCooldown).UTC()
	rows, err := s.db.QueryContext(ctx, `
		SELECT pattern FROM suggestions
		WHERE user_id = ?
		  AND (status = 'PENDING'
			OR status = 'ACCEPTED'
			OR (status = 'REJECTED' AND dismissed_at > ?))
	`, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query excluded patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	excluded := make(map[string]bool)
	for rows.Next() {
		var pattern string
		if err := rows.Scan(&pattern); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		excluded[pattern] = true
	}
	return excluded, rows.Err()
}

// rejectionCooldown is how long a rejected pattern stays out of mining.
const rejectionCooldown = 30 * 24 * time.Hour

// AcceptSuggestion materializes a pending suggestion as an active rule and
// marks the suggestion accepted.
func (s *SQLiteStorage) AcceptSuggestion(ctx context.Context, suggestionID string) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var suggestion model.RuleSuggestion
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, pattern, suggested_category_id, confidence
		FROM suggestions WHERE id = ? AND status = 'PENDING'
	`, suggestionID).Scan(
		&suggestion.UserID, &suggestion.Pattern,
		&suggestion.SuggestedCategoryID, &suggestion.Confidence,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("no pending suggestion %q", suggestionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestion: %w", err)
	}

	rule := &model.Rule{
		UserID:          suggestion.UserID,
		Name:            suggestion.Pattern,
		Pattern:         suggestion.Pattern,
		Type:            model.MatchContains,
		Logic:           model.LogicAll,
		CategoryID:      suggestion.SuggestedCategoryID,
		Priority:        100,
		ConfidenceScore: suggestion.Confidence,
		IsActive:        true,
	}
	if err := s.CreateRule(ctx, rule); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE suggestions SET status = 'ACCEPTED' WHERE id = ?`,
		suggestionID); err != nil {
		return nil, fmt.Errorf("failed to mark suggestion accepted: %w", err)
	}
	return rule, nil
}

// RejectSuggestion dismisses a pending suggestion, excluding its pattern
// from mining for the cooldown window.
func (s *SQLiteStorage) RejectSuggestion(ctx context.Context, suggestionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// dismissed_at is written from Go in UTC so the cooldown comparison in
	// ExcludedPatterns never mixes time zones.
	result, err := s.db.ExecContext(ctx, `
		UPDATE suggestions SET status = 'REJECTED', dismissed_at = ?
		WHERE id = ? AND status = 'PENDING'
	`, time.Now().UTC(), suggestionID)
	if err != nil {
		return fmt.Errorf("failed to reject suggestion: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("no pending suggestion %q", suggestionID)
	}
	return nil
}
