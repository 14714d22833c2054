package rules

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultCheapFixRule sends small error sets straight to a local fix.
const DefaultCheapFixRule = "errorCount <= 2"

// ErrEmptyRule is returned for a blank rule expression.
var ErrEmptyRule = errors.New("rule expression is empty")

// Facts are the values a routing rule may reference.
type Facts struct {
	ErrorCount   int
	Iteration    int
	Round        int
	WarningCount int
}

func (f Facts) env() map[string]interface{} {
	return map[string]interface{}{
		"errorCount":   f.ErrorCount,
		"iteration":    f.Iteration,
		"round":        f.Round,
		"warningCount": f.WarningCount,
	}
}

// Policy holds the router's configurable rules.
type Policy struct {
	evaluator Evaluator
	cheapFix  string
}

// NewPolicy compiles cheapFixRule once against zero facts so a bad rule
// fails at startup instead of mid-run. A blank rule uses DefaultCheapFixRule.
func NewPolicy(evaluator Evaluator, cheapFixRule string) (*Policy, error) {
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}
	rule := strings.TrimSpace(cheapFixRule)
	if rule == "" {
		rule = DefaultCheapFixRule
	}
	if _, err := evaluator.Evaluate(rule, Facts{}.env()); err != nil {
		return nil, fmt.Errorf("invalid cheap fix rule: %w", err)
	}
	return &Policy{evaluator: evaluator, cheapFix: rule}, nil
}

// DefaultPolicy returns the policy built from DefaultCheapFixRule.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(nil, DefaultCheapFixRule)
	if err != nil {
		panic(err)
	}
	return p
}

// CheapFixRule returns the expression in use.
func (p *Policy) CheapFixRule() string {
	return p.cheapFix
}

// CheapFix reports whether the current error set is small enough to fix
// locally without asking the reasoning collaborator.
func (p *Policy) CheapFix(f Facts) (bool, error) {
	if strings.TrimSpace(p.cheapFix) == "" {
		return false, ErrEmptyRule
	}
	return p.evaluator.Evaluate(p.cheapFix, f.env())
}
