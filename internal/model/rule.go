package model

import "time"

// MatchType describes how a rule's top-level pattern is compared against a
// transaction description (legacy single-criterion mode).
type MatchType string

// Match type constants.
const (
	MatchContains   MatchType = "contains"
	MatchExact      MatchType = "exact"
	MatchStartsWith MatchType = "starts_with"
	MatchEndsWith   MatchType = "ends_with"
	MatchRegex      MatchType = "regex"
)

// RuleLogic controls how a rule's condition list is reduced.
type RuleLogic string

// Rule logic constants.
const (
	LogicAll RuleLogic = "all"
	LogicAny RuleLogic = "any"
)

// ConditionField identifies the transaction attribute a condition inspects.
type ConditionField string

// Condition field constants.
const (
	FieldDescription     ConditionField = "description"
	FieldUserDescription ConditionField = "user_description"
	FieldAmount          ConditionField = "amount"
	FieldAccountType     ConditionField = "account_type"
)

// ConditionOperator identifies the comparison a condition performs.
type ConditionOperator string

// Condition operator constants.
const (
	OpContains    ConditionOperator = "contains"
	OpEquals      ConditionOperator = "equals"
	OpStartsWith  ConditionOperator = "starts_with"
	OpEndsWith    ConditionOperator = "ends_with"
	OpRegex       ConditionOperator = "regex"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
	OpBetween     ConditionOperator = "between"
)

// RuleCondition is a single typed predicate within a rule. Order is a display
// tie-break only; evaluation order follows the slice.
type RuleCondition struct {
	Field         ConditionField    `json:"field"`
	Operator      ConditionOperator `json:"operator"`
	Value         string            `json:"value"`
	Value2        string            `json:"value2,omitempty"` // Upper bound for between
	CaseSensitive bool              `json:"case_sensitive"`
	Order         int               `json:"order"`
}

// Rule maps matching transactions to a category. Rules come in two shapes:
// legacy single-pattern rules (Pattern + Type, empty Conditions) and
// condition-list rules (Conditions + Logic). Both are supported at once.
type Rule struct {
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ID              int64           `json:"id"`
	UserID          string          `json:"user_id"`
	Name            string          `json:"name"`
	Pattern         string          `json:"pattern"`
	Type            MatchType       `json:"type"`
	Conditions      []RuleCondition `json:"conditions,omitempty"`
	Logic           RuleLogic       `json:"logic"`
	CategoryID      string          `json:"category_id"`
	Priority        int             `json:"priority"` // Lower evaluates first
	ConfidenceScore float64         `json:"confidence_score,omitempty"`
	MatchCount      int             `json:"match_count"`
	CorrectionCount int             `json:"correction_count"`
	IsActive        bool            `json:"is_active"`
}

// EffectiveConfidence returns the rule's confidence override when set,
// otherwise a default derived from the match type. Exact matches carry the
// highest trust, fuzzy matches the lowest.
func (r *Rule) EffectiveConfidence() float64 {
	if r.ConfidenceScore > 0 {
		return r.ConfidenceScore
	}
	switch r.Type {
	case MatchExact:
		return 0.95
	case MatchStartsWith, MatchEndsWith:
		return 0.90
	default:
		return 0.85
	}
}

// CorrectionRatio reports how often users have overridden this rule's
// decisions, used for rule health reporting.
func (r *Rule) CorrectionRatio() float64 {
	if r.MatchCount == 0 {
		return 0
	}
	return float64(r.CorrectionCount) / float64(r.MatchCount)
}
