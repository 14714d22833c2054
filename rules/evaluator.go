package rules

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator evaluates boolean rule expressions against a set of facts.
type Evaluator interface {
	Evaluate(expression string, facts map[string]interface{}) (bool, error)
}

// ExprEvaluator implements Evaluator with expr-lang/expr. Compiled
// programs are cached by expression text.
type ExprEvaluator struct {
	cache   map[string]*vm.Program
	mu      sync.RWMutex
	derived map[string]func(map[string]interface{}) interface{}
}

// NewExprEvaluator creates an evaluator with an empty program cache.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{
		cache:   make(map[string]*vm.Program),
		derived: make(map[string]func(map[string]interface{}) interface{}),
	}
}

// AddDerived registers a fact computed from the others before each evaluation.
func (e *ExprEvaluator) AddDerived(name string, f func(map[string]interface{}) interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.derived[name] = f
}

// Evaluate runs expression against facts. The caller's map is not modified.
// Compilation and runtime failures are returned, as is a non-boolean result.
func (e *ExprEvaluator) Evaluate(expression string, facts map[string]interface{}) (bool, error) {
	env := make(map[string]interface{}, len(facts)+len(e.derived))
	for k, v := range facts {
		env[k] = v
	}
	e.mu.RLock()
	for k, f := range e.derived {
		env[k] = f(facts)
	}
	program, ok := e.cache[expression]
	e.mu.RUnlock()

	if !ok {
		e.mu.Lock()
		if program, ok = e.cache[expression]; !ok {
			var err error
			program, err = expr.Compile(expression, expr.Env(env), expr.AsBool())
			if err != nil {
				e.mu.Unlock()
				return false, fmt.Errorf("compile rule %q: %w", expression, err)
			}
			e.cache[expression] = program
		}
		e.mu.Unlock()
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("run rule %q: %w", expression, err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("rule %q did not evaluate to a boolean, got %T", expression, result)
	}
	return b, nil
}
