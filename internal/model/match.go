package model

import "time"

// MatchCandidate is a scored pairing of two transaction-like entities. The
// same shape serves transfer detection (debit/credit legs across accounts)
// and reconciliation (internal transaction vs. external bank line).
// Candidates are created fresh per detection run and only persisted if the
// caller confirms them.
type MatchCandidate struct {
	Date             time.Time
	ID               string
	SourceID         string // Debit leg, or the internal transaction
	TargetID         string // Credit leg, or the external bank line
	MatchingCriteria []string
	Amount           float64
	Confidence       float64
}

// PairKey returns an order-independent key for deduplication, so a pair
// evaluated from both directions is reported once.
func (c *MatchCandidate) PairKey() string {
	if c.SourceID < c.TargetID {
		return c.SourceID + "|" + c.TargetID
	}
	return c.TargetID + "|" + c.SourceID
}
