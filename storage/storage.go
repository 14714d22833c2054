// Package storage persists run records.
package storage

import (
	"context"
	"errors"
	"sort"

	"github.com/songzhibin97/jsonforge/types"
)

// ErrRunNotFound is returned when no record exists for an ID.
var ErrRunNotFound = errors.New("run not found")

// Storage persists snapshots of convergence runs.
type Storage interface {
	// SaveRun stores rec, replacing any earlier snapshot with the same ID.
	SaveRun(ctx context.Context, rec types.RunRecord) error

	// GetRun returns the latest snapshot of a run.
	GetRun(ctx context.Context, id uint64) (types.RunRecord, error)

	// ListRuns returns every stored run ordered by ID.
	ListRuns(ctx context.Context) ([]types.RunRecord, error)

	// ClearCompleted removes runs in a terminal status and returns how many.
	ClearCompleted(ctx context.Context) (int, error)
}

func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	default:
		return fn()
	}
}

func sortByID(recs []types.RunRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
}
