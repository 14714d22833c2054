package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/jsonforge/types"
)

func TestRunBatch(t *testing.T) {
	collab := newScripted()
	collab.documents = []string{`{"name":"Kim"}`}
	engine := newTestEngine(t, collab, WithParallelism(2))

	reqs := []types.RunRequest{
		{UserIntent: "first", Schema: nameSchema},
		{UserIntent: "second", Schema: nameSchema},
		{UserIntent: "broken", Schema: `{"type":`},
		{UserIntent: "fourth", Schema: nameSchema},
		{UserIntent: "fifth", Schema: nameSchema},
	}

	results, err := engine.RunBatch(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, results, len(reqs))

	ids := map[uint64]bool{}
	for i, res := range results {
		assert.Equal(t, i, res.Index)
		require.NotNil(t, res.Result)
		ids[res.Result.RunID] = true
		if reqs[i].UserIntent == "broken" {
			assert.ErrorIs(t, res.Err, ErrSchemaInvalid)
			assert.Equal(t, types.RunFailed, res.Result.Status)
			continue
		}
		assert.NoError(t, res.Err)
		assert.Equal(t, types.RunCompleted, res.Result.Status)
	}
	assert.Len(t, ids, len(reqs))
	assert.Equal(t, 4, collab.count(CallGenerate))
}

func TestRunBatchCancelled(t *testing.T) {
	engine := newTestEngine(t, newScripted())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := engine.RunBatch(ctx, []types.RunRequest{{Schema: nameSchema}, {Schema: nameSchema}})
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
}

func TestRunBatchEmpty(t *testing.T) {
	engine := newTestEngine(t, newScripted())
	results, err := engine.RunBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Empty(t, results)
}
