package rules

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExprEvaluator(t *testing.T) {
	evaluator := NewExprEvaluator()

	tests := []struct {
		name       string
		expression string
		facts      map[string]interface{}
		wantResult bool
		wantErr    bool
		errMsg     string
	}{
		{
			name:       "true expression",
			expression: "errorCount <= 2",
			facts:      map[string]interface{}{"errorCount": 1},
			wantResult: true,
		},
		{
			name:       "false expression",
			expression: "errorCount <= 2",
			facts:      map[string]interface{}{"errorCount": 3},
			wantResult: false,
		},
		{
			name:       "combined facts",
			expression: "errorCount <= 4 && iteration < 3",
			facts:      map[string]interface{}{"errorCount": 4, "iteration": 3},
			wantResult: false,
		},
		{
			name:       "non-boolean result",
			expression: "errorCount + 5",
			facts:      map[string]interface{}{"errorCount": 1},
			wantErr:    true,
			errMsg:     "errorCount + 5",
		},
		{
			name:       "invalid syntax",
			expression: "errorCount >>> 2",
			facts:      map[string]interface{}{"errorCount": 1},
			wantErr:    true,
			errMsg:     "compile rule",
		},
		{
			name:       "unknown fact",
			expression: "missing > 1",
			facts:      map[string]interface{}{"errorCount": 1},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.Evaluate(tt.expression, tt.facts)
			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
				assert.False(t, result)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantResult, result)
		})
	}

	t.Run("cached program gives the same answer", func(t *testing.T) {
		facts := map[string]interface{}{"round": 15}
		first, err := evaluator.Evaluate("round > 10", facts)
		assert.NoError(t, err)
		second, err := evaluator.Evaluate("round > 10", facts)
		assert.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("concurrent evaluation", func(t *testing.T) {
		var wg sync.WaitGroup
		facts := map[string]interface{}{"errorCount": 2}
		wg.Add(50)
		for i := 0; i < 50; i++ {
			go func() {
				defer wg.Done()
				result, err := evaluator.Evaluate("errorCount > 0", facts)
				assert.NoError(t, err)
				assert.True(t, result)
			}()
		}
		wg.Wait()
	})
}

func TestExprEvaluatorDerivedFacts(t *testing.T) {
	evaluator := NewExprEvaluator()
	evaluator.AddDerived("heavy", func(facts map[string]interface{}) interface{} {
		return facts["errorCount"].(int) > 5
	})

	facts := map[string]interface{}{"errorCount": 7}
	result, err := evaluator.Evaluate("heavy", facts)
	assert.NoError(t, err)
	assert.True(t, result)

	_, present := facts["heavy"]
	assert.False(t, present, "caller facts must not be modified")
}

func BenchmarkEvaluate(b *testing.B) {
	evaluator := NewExprEvaluator()
	facts := map[string]interface{}{"errorCount": 3}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = evaluator.Evaluate("errorCount <= 2", facts)
	}
}
