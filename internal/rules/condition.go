// Package rules evaluates user-authored categorization rules against
// transactions.
package rules

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/calloway/ledgerflow/internal/model"
)

// EvaluateCondition checks a single typed condition against a transaction.
// Malformed conditions evaluate to false rather than erroring, so one bad
// condition can never abort a whole batch.
func EvaluateCondition(cond model.RuleCondition, txn model.Transaction) bool {
	switch cond.Field {
	case model.FieldDescription:
		return evaluateString(cond, txn.Description)
	case model.FieldUserDescription:
		return evaluateString(cond, txn.UserDescription)
	case model.FieldAccountType:
		return evaluateString(cond, txn.AccountType)
	case model.FieldAmount:
		return evaluateNumeric(cond, txn.Amount)
	default:
		// Unknown field: fail closed.
		return false
	}
}

func evaluateString(cond model.RuleCondition, value string) bool {
	if value == "" {
		return false
	}

	target := cond.Value
	if !cond.CaseSensitive {
		value = strings.ToLower(value)
		target = strings.ToLower(target)
	}

	switch cond.Operator {
	case model.OpContains:
		return strings.Contains(value, target)
	case model.OpEquals:
		return value == target
	case model.OpStartsWith:
		return strings.HasPrefix(value, target)
	case model.OpEndsWith:
		return strings.HasSuffix(value, target)
	case model.OpRegex:
		re, err := compileCached(target, cond.CaseSensitive)
		if err != nil {
			return false
		}
		return re.MatchString(value)
	default:
		return false
	}
}

func evaluateNumeric(cond model.RuleCondition, amount float64) bool {
	value, err := strconv.ParseFloat(strings.TrimSpace(cond.Value), 64)
	if err != nil {
		return false
	}

	switch cond.Operator {
	case model.OpEquals:
		return amount == value
	case model.OpGreaterThan:
		return amount > value
	case model.OpLessThan:
		return amount < value
	case model.OpBetween:
		upper, err := strconv.ParseFloat(strings.TrimSpace(cond.Value2), 64)
		if err != nil {
			return false
		}
		return amount >= value && amount <= upper
	default:
		return false
	}
}

// matchesConditions reduces a rule's condition list with its ALL/ANY logic.
func matchesConditions(rule model.Rule, txn model.Transaction) bool {
	if len(rule.Conditions) == 0 {
		return false
	}

	for _, cond := range rule.Conditions {
		matched := EvaluateCondition(cond, txn)
		switch rule.Logic {
		case model.LogicAny:
			if matched {
				return true
			}
		default: // ALL is the default reduction
			if !matched {
				return false
			}
		}
	}
	return rule.Logic != model.LogicAny
}

// matchesPattern evaluates a legacy single-pattern rule against the
// transaction's display description, case-insensitively.
func matchesPattern(rule model.Rule, txn model.Transaction) bool {
	pattern := strings.TrimSpace(rule.Pattern)
	if pattern == "" {
		return false
	}

	desc := strings.ToLower(txn.DisplayDescription())
	target := strings.ToLower(pattern)

	switch rule.Type {
	case model.MatchExact:
		return desc == target
	case model.MatchStartsWith:
		return strings.HasPrefix(desc, target)
	case model.MatchEndsWith:
		return strings.HasSuffix(desc, target)
	case model.MatchRegex:
		re, err := compileCached(rule.Pattern, false)
		if err != nil {
			return false
		}
		return re.MatchString(txn.DisplayDescription())
	default: // Contains is the historical default
		return strings.Contains(desc, target)
	}
}

// compileCached compiles a regex, caching by pattern and case sensitivity.
// The cache is shared across goroutines since batches evaluate rules in
// parallel.
var regexCache sync.Map // key string -> *regexp.Regexp

func compileCached(pattern string, caseSensitive bool) (*regexp.Regexp, error) {
	key := pattern
	if !caseSensitive {
		key = "(?i)" + pattern
	}
	if cached, ok := regexCache.Load(key); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(key)
	if err != nil {
		return nil, err
	}
	regexCache.Store(key, re)
	return re, nil
}
