package rules

import (
	"context"
	"sort"

	"github.com/calloway/ledgerflow/internal/model"
)

// RuleMatch is one rule that matched a transaction, with the confidence the
// match carries.
type RuleMatch struct {
	Rule       model.Rule
	Confidence float64
}

// Engine finds matching rules for transactions. It holds no mutable state
// beyond the rule set it was built with and is safe for concurrent use.
type Engine struct {
	rules []model.Rule
}

// NewEngine creates an engine over the given rule set. Inactive rules are
// dropped up front.
func NewEngine(ruleSet []model.Rule) *Engine {
	active := make([]model.Rule, 0, len(ruleSet))
	for _, r := range ruleSet {
		if r.IsActive {
			active = append(active, r)
		}
	}
	return &Engine{rules: active}
}

// FindMatches returns every rule matching the transaction, ordered by
// priority ascending, then confidence descending, then rule ID. The order
// is stable for a fixed rule set, which "first match wins" semantics
// depend on.
func (e *Engine) FindMatches(_ context.Context, txn model.Transaction) []RuleMatch {
	var matches []RuleMatch
	for _, rule := range e.rules {
		if !Matches(rule, txn) {
			continue
		}
		matches = append(matches, RuleMatch{
			Rule:       rule,
			Confidence: rule.EffectiveConfidence(),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Rule.Priority != b.Rule.Priority {
			return a.Rule.Priority < b.Rule.Priority
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Rule.ID < b.Rule.ID
	})
	return matches
}

// Matches reports whether a rule matches a transaction. Condition-list
// rules use their ALL/ANY reduction; rules with no conditions fall back to
// the legacy top-level pattern.
func Matches(rule model.Rule, txn model.Transaction) bool {
	if len(rule.Conditions) > 0 {
		return matchesConditions(rule, txn)
	}
	return matchesPattern(rule, txn)
}
