package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/calloway/ledgerflow/internal/model"
)

// SaveCategory inserts or updates a category.
func (s *SQLiteStorage) SaveCategory(ctx context.Context, category *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if category.ID == "" || category.Name == "" {
		return fmt.Errorf("category must have an ID and a name")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, description, color, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			color = excluded.color,
			is_active = excluded.is_active
	`, category.ID, category.Name, category.Description, category.Color, category.IsActive)
	if err != nil {
		return fmt.Errorf("failed to save category: %w", err)
	}
	return nil
}

// GetCategory resolves one category. Implements engine.CategoryLookup.
func (s *SQLiteStorage) GetCategory(ctx context.Context, categoryID string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var category model.Category
	var description, color sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, color, is_active, created_at
		FROM categories WHERE id = ?
	`, categoryID).Scan(
		&category.ID, &category.Name, &description, &color,
		&category.IsActive, &category.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q not found", categoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	category.Description = description.String
	category.Color = color.String
	return &category, nil
}

// ListCategories returns all active categories ordered by name.
func (s *SQLiteStorage) ListCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, color, is_active, created_at
		FROM categories WHERE is_active = 1 ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var category model.Category
		var description, color sql.NullString
		if err := rows.Scan(
			&category.ID, &category.Name, &description, &color,
			&category.IsActive, &category.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		category.Description = description.String
		category.Color = color.String
		categories = append(categories, category)
	}
	return categories, rows.Err()
}
