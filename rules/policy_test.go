package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, DefaultCheapFixRule, p.CheapFixRule())

	for count, want := range map[int]bool{0: true, 1: true, 2: true, 3: false, 10: false} {
		got, err := p.CheapFix(Facts{ErrorCount: count})
		require.NoError(t, err)
		assert.Equal(t, want, got, "errorCount %d", count)
	}
}

func TestNewPolicy(t *testing.T) {
	p, err := NewPolicy(nil, "  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultCheapFixRule, p.CheapFixRule())

	p, err = NewPolicy(NewExprEvaluator(), "errorCount <= 4 && iteration < 2")
	require.NoError(t, err)
	ok, err := p.CheapFix(Facts{ErrorCount: 4, Iteration: 1})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = p.CheapFix(Facts{ErrorCount: 4, Iteration: 2})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = NewPolicy(nil, "errorCount +")
	assert.Error(t, err)

	_, err = NewPolicy(nil, "unknownFact > 1")
	assert.Error(t, err)
}
