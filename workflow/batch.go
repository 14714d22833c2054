package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/songzhibin97/jsonforge/types"
)

// BatchResult pairs a request's result with its error. Index is the
// position of the request in the batch.
type BatchResult struct {
	Index  int
	Result *types.RunResult
	Err    error
}

// RunBatch executes independent requests concurrently, at most
// parallelism at a time. A failing run does not cancel the others; each
// error is reported in its own BatchResult. The returned error is only
// set when ctx ends before every run was started.
func (e *Engine) RunBatch(ctx context.Context, reqs []types.RunRequest) ([]BatchResult, error) {
	results := make([]BatchResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)

	for i, req := range reqs {
		results[i].Index = i
		if err := gctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			res, err := e.Run(gctx, req.UserIntent, req.Schema)
			results[i].Result = res
			results[i].Err = err
			return nil
		})
	}

	_ = g.Wait()
	return results, ctx.Err()
}
