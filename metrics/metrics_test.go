package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDecisionsCounter(t *testing.T) {
	c := Decisions.WithLabelValues("FIX", "cheap_fix")
	before := testutil.ToFloat64(c)
	c.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestCollaboratorCalls(t *testing.T) {
	ok := CollaboratorCalls.WithLabelValues("generate", ResultOK)
	before := testutil.ToFloat64(ok)
	ok.Add(2)
	assert.Equal(t, before+2, testutil.ToFloat64(ok))
}

func TestRunsActiveGauge(t *testing.T) {
	RunsActive.Inc()
	RunsActive.Dec()
	assert.GreaterOrEqual(t, testutil.ToFloat64(RunsActive), 0.0)
}
