// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Transaction represents a single financial transaction from any source.
// The engine treats it as read-only: classification and matching return
// decisions, they never mutate the transaction itself.
type Transaction struct {
	PostedDate      time.Time
	ID              string
	Description     string // Raw description as imported
	UserDescription string // Optional user-supplied override
	AccountID       string
	AccountName     string
	AccountType     string // e.g. CHECKING, SAVINGS, CREDITCARD
	Hash            string
	CategoryID      string // Already-assigned category, empty if unclassified
	BankCategory    string // Category hint supplied by the bank/import source
	CheckNumber     string
	Amount          float64
}

// DisplayDescription returns the user override when present, otherwise the
// raw description.
func (t *Transaction) DisplayDescription() string {
	if strings.TrimSpace(t.UserDescription) != "" {
		return t.UserDescription
	}
	return t.Description
}

// IsDebit reports whether the transaction moves money out of the account.
func (t *Transaction) IsDebit() bool {
	return t.Amount < 0
}

// GenerateHash creates a unique hash for duplicate detection on import.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%s",
		t.PostedDate.Format("2006-01-02"),
		t.Amount,
		t.Description,
		t.AccountID)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
