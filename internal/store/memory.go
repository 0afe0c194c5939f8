package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/convotest/convotest/internal/models"
)

var ErrRunNotFound = errors.New("run not found in store")

// MemoryStore keeps runs in process memory. Used by the batch runner and
// in deployments without a database.
type MemoryStore struct {
	mu       sync.Mutex
	progress map[string]models.RunProgress
	results  map[string][]models.TestResult
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		progress: make(map[string]models.RunProgress),
		results:  make(map[string][]models.TestResult),
	}
}

func (s *MemoryStore) SaveResult(ctx context.Context, runID string, result models.TestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[runID] = append(s.results[runID], result)
	return nil
}

func (s *MemoryStore) UpdateProgress(ctx context.Context, progress models.RunProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[progress.RunID] = progress
	return nil
}

func (s *MemoryStore) GetProgress(ctx context.Context, runID string) (models.RunProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	progress, ok := s.progress[runID]
	if !ok {
		return models.RunProgress{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return progress, nil
}

func (s *MemoryStore) ListResults(ctx context.Context, runID string, skip int) ([]models.TestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := s.results[runID]
	if skip < 0 {
		skip = 0
	}
	if skip >= len(results) {
		return nil, nil
	}

	out := make([]models.TestResult, len(results)-skip)
	copy(out, results[skip:])
	return out, nil
}
