package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/calloway/ledgerflow/internal/model"
)

// SaveTransactions upserts transactions, deduplicating on hash. Returns the
// number of newly inserted rows.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, txns []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	inserted := 0
	for i := range txns {
		txn := &txns[i]
		if txn.Hash == "" {
			txn.Hash = txn.GenerateHash()
		}
		result, execErr := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO transactions (
				id, hash, posted_date, description, user_description,
				account_id, account_name, account_type, bank_category,
				check_number, amount, category_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, txn.ID, txn.Hash, txn.PostedDate, txn.Description, txn.UserDescription,
			txn.AccountID, txn.AccountName, txn.AccountType, txn.BankCategory,
			txn.CheckNumber, txn.Amount, nullIfEmpty(txn.CategoryID))
		if execErr != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("failed to save transaction %s: %w", txn.ID, execErr)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transactions: %w", err)
	}
	return inserted, nil
}

// GetUnclassifiedTransactions returns transactions without a category and
// without an auto-applied outcome, oldest first.
func (s *SQLiteStorage) GetUnclassifiedTransactions(ctx context.Context, since *time.Time) ([]model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions t
		WHERE t.category_id IS NULL
		  AND NOT EXISTS (
			SELECT 1 FROM outcomes o
			WHERE o.transaction_id = t.id AND o.state = 'AUTO_APPLIED'
		  )
	`
	args := []any{}
	if since != nil {
		query += ` AND t.posted_date >= ?`
		args = append(args, *since)
	}
	query += ` ORDER BY t.posted_date`
	return s.queryTransactions(ctx, query, args...)
}

// GetCategorizedTransactions returns transactions with an assigned
// category, for suggestion mining. Implements suggest.HistorySource.
func (s *SQLiteStorage) GetCategorizedTransactions(ctx context.Context, _ string) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		WHERE t.category_id IS NOT NULL
		ORDER BY t.posted_date DESC
	`)
}

// GetTransactionsInWindow returns transactions posted inside [from, to],
// the input set for transfer detection and reconciliation.
func (s *SQLiteStorage) GetTransactionsInWindow(ctx context.Context, from, to time.Time) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions t
		WHERE t.posted_date >= ? AND t.posted_date <= ?
		ORDER BY t.posted_date
	`, from, to)
}

// SetTransactionCategory assigns a category directly, used when a candidate
// or correction is confirmed.
func (s *SQLiteStorage) SetTransactionCategory(ctx context.Context, transactionID, categoryID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ? WHERE id = ?`,
		nullIfEmpty(categoryID), transactionID)
	if err != nil {
		return fmt.Errorf("failed to set category: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("transaction %q not found", transactionID)
	}
	return nil
}

const transactionColumns = `
	t.id, t.hash, t.posted_date, t.description, t.user_description,
	t.account_id, t.account_name, t.account_type, t.bank_category,
	t.check_number, t.amount, t.category_id`

func (s *SQLiteStorage) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		var txn model.Transaction
		var userDescription, accountID, accountName, accountType sql.NullString
		var bankCategory, checkNumber, categoryID sql.NullString
		if err := rows.Scan(
			&txn.ID, &txn.Hash, &txn.PostedDate, &txn.Description,
			&userDescription, &accountID, &accountName, &accountType,
			&bankCategory, &checkNumber, &txn.Amount, &categoryID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.UserDescription = userDescription.String
		txn.AccountID = accountID.String
		txn.AccountName = accountName.String
		txn.AccountType = accountType.String
		txn.BankCategory = bankCategory.String
		txn.CheckNumber = checkNumber.String
		txn.CategoryID = categoryID.String
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
