package validation

import (
	"strings"

	errors "github.com/furahitechstudio/furahitechpay/internal"
)

// Rule is a precomputed predicate bound to the rejection it produces when it does not hold.
type Rule struct {
	Name  string
	Holds bool
	Err   *errors.AppError
}

// RuleSet evaluates rules in insertion order. Order is significant: the first failing rule wins.
type RuleSet struct {
	rules []Rule
}

func NewRuleSet() *RuleSet {
	return &RuleSet{
		rules: make([]Rule, 0),
	}
}

func (rs *RuleSet) Require(name string, holds bool, err *errors.AppError) *RuleSet {
	rs.rules = append(rs.rules, Rule{Name: name, Holds: holds, Err: err})
	return rs
}

// RequireWhen adds a rule that only applies when the precondition is true.
func (rs *RuleSet) RequireWhen(precondition bool, name string, holds bool, err *errors.AppError) *RuleSet {
	return rs.Require(name, !precondition || holds, err)
}

func (rs *RuleSet) First() *errors.AppError {
	for _, rule := range rs.rules {
		if !rule.Holds {
			return rule.Err
		}
	}
	return nil
}

// Failing lists every failing rule in priority order.
func (rs *RuleSet) Failing() []Rule {
	var failing []Rule
	for _, rule := range rs.rules {
		if !rule.Holds {
			failing = append(failing, rule)
		}
	}
	return failing
}

func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// NotEmpty reports whether every value is non-empty.
func NotEmpty(values ...string) bool {
	for _, v := range values {
		if v == "" {
			return false
		}
	}
	return true
}

// EqualsAnyFold reports whether value equals one of the candidates, ignoring case.
func EqualsAnyFold(value string, candidates ...string) bool {
	for _, c := range candidates {
		if strings.EqualFold(value, c) {
			return true
		}
	}
	return false
}
