package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/songzhibin97/jsonforge/types"
)

// MemoryStorage keeps run records in a map.
type MemoryStorage struct {
	runs map[uint64]types.RunRecord
	mu   sync.RWMutex
}

// NewMemoryStorage creates an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{runs: make(map[uint64]types.RunRecord)}
}

func (s *MemoryStorage) SaveRun(ctx context.Context, rec types.RunRecord) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.runs[rec.ID] = cloneRecord(rec)
		return struct{}{}, nil
	})
	return err
}

func (s *MemoryStorage) GetRun(ctx context.Context, id uint64) (types.RunRecord, error) {
	return withContext(ctx, func() (types.RunRecord, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		rec, ok := s.runs[id]
		if !ok {
			return types.RunRecord{}, fmt.Errorf("%w: id=%d", ErrRunNotFound, id)
		}
		return cloneRecord(rec), nil
	})
}

func (s *MemoryStorage) ListRuns(ctx context.Context) ([]types.RunRecord, error) {
	return withContext(ctx, func() ([]types.RunRecord, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		out := make([]types.RunRecord, 0, len(s.runs))
		for _, rec := range s.runs {
			out = append(out, cloneRecord(rec))
		}
		sortByID(out)
		return out, nil
	})
}

func (s *MemoryStorage) ClearCompleted(ctx context.Context) (int, error) {
	return withContext(ctx, func() (int, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		n := 0
		for id, rec := range s.runs {
			if rec.Status.IsTerminal() {
				delete(s.runs, id)
				n++
			}
		}
		return n, nil
	})
}

// cloneRecord copies the slices a caller could mutate after saving.
func cloneRecord(rec types.RunRecord) types.RunRecord {
	rec.Trace = append([]types.TraceEntry(nil), rec.Trace...)
	rec.State.HeuristicWarnings = append([]string(nil), rec.State.HeuristicWarnings...)
	if rec.State.ValidationResult != nil {
		vr := *rec.State.ValidationResult
		vr.Errors = append([]string(nil), vr.Errors...)
		rec.State.ValidationResult = &vr
	}
	return rec
}
