package model

import "time"

// OutcomeState indicates how a pipeline run resolved a transaction.
type OutcomeState string

// Outcome state constants.
const (
	OutcomeAutoApplied OutcomeState = "AUTO_APPLIED"
	OutcomeCandidate   OutcomeState = "CANDIDATE"
	OutcomeUnresolved  OutcomeState = "UNRESOLVED"
)

// CandidateStatus tracks the review lifecycle of a candidate classification.
type CandidateStatus string

// Candidate status constants.
const (
	CandidatePending  CandidateStatus = "PENDING"
	CandidateAccepted CandidateStatus = "ACCEPTED"
	CandidateRejected CandidateStatus = "REJECTED"
)

// ClassificationOutcome is the result of running one transaction through the
// pipeline. Exactly one outcome exists per transaction per run.
type ClassificationOutcome struct {
	ClassifiedAt time.Time
	TransactionID string
	CategoryID    string
	CategoryName  string
	Source        string // Stage that produced the decision, e.g. "rules"
	State         OutcomeState
	Status        CandidateStatus // Only meaningful when State == OutcomeCandidate
	RuleID        int64           // Matching rule when Source == "rules", else 0
	Confidence    float64
}

// IsResolved reports whether the outcome assigned a category, either
// committed or pending review.
func (o *ClassificationOutcome) IsResolved() bool {
	return o.State == OutcomeAutoApplied || o.State == OutcomeCandidate
}
