package model

import "time"

// SuggestionStatus tracks the lifecycle of a mined rule suggestion.
type SuggestionStatus string

// Suggestion status constants.
const (
	SuggestionPending  SuggestionStatus = "PENDING"
	SuggestionAccepted SuggestionStatus = "ACCEPTED"
	SuggestionRejected SuggestionStatus = "REJECTED"
)

// RuleSuggestion is a rule proposal mined from historically categorized
// transactions. Accepting one materializes a Rule; rejecting one excludes
// the pattern from future mining for a cooldown window.
type RuleSuggestion struct {
	CreatedAt           time.Time
	DismissedAt         *time.Time
	ID                  string
	UserID              string
	Pattern             string
	SuggestedCategoryID string
	SampleTransactions  []Transaction // Bounded, ordered by date descending
	Status              SuggestionStatus
	MatchCount          int
	Confidence          float64
}
