package store

import (
	"context"
	"sync"

	"ospfatlas/internal/atlas/domain"
	"ospfatlas/pkg/errors"
	"ospfatlas/pkg/logger"
)

// JobStore is the explicit job registry keyed by job id. It is injected
// into the executor and the broadcaster rather than accessed as ambient
// global state. Jobs are retained until explicit delete.
type JobStore interface {
	Create(ctx context.Context, job *domain.AutomationJob) error
	Get(ctx context.Context, id string) (*domain.AutomationJob, bool, error)
	Update(ctx context.Context, job *domain.AutomationJob) error
	List(ctx context.Context) ([]*domain.AutomationJob, error)
	Delete(ctx context.Context, id string) error
	Reset(ctx context.Context) error
}

// MemoryJobStore keeps jobs in process memory. Reads hand out deep copies
// so callers never alias the executor's working state.
type MemoryJobStore struct {
	jobs   map[string]*domain.AutomationJob
	mutex  sync.RWMutex
	logger *logger.Logger
}

// NewMemoryJobStore creates an in-memory job store.
func NewMemoryJobStore(log *logger.Logger) *MemoryJobStore {
	return &MemoryJobStore{
		jobs:   make(map[string]*domain.AutomationJob),
		logger: log.WithField("component", "job-store"),
	}
}

func (s *MemoryJobStore) Create(ctx context.Context, job *domain.AutomationJob) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.jobs[job.ID] = job.DeepCopy()
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, id string) (*domain.AutomationJob, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	job, exists := s.jobs[id]
	if !exists {
		return nil, false, nil
	}
	return job.DeepCopy(), true, nil
}

func (s *MemoryJobStore) Update(ctx context.Context, job *domain.AutomationJob) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		return errors.ErrJobNotFound
	}
	s.jobs[job.ID] = job.DeepCopy()
	return nil
}

func (s *MemoryJobStore) List(ctx context.Context) ([]*domain.AutomationJob, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	result := make([]*domain.AutomationJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		result = append(result, job.DeepCopy())
	}
	return result, nil
}

func (s *MemoryJobStore) Delete(ctx context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	job, exists := s.jobs[id]
	if !exists {
		return errors.ErrJobNotFound
	}
	// Running jobs are stopped before deletion, never deleted out from
	// under the executor.
	if !job.IsTerminal() && job.Status != domain.StatusPending {
		return errors.ErrJobNotTerminal
	}
	delete(s.jobs, id)
	return nil
}

// Reset clears the job history. Administrative operation scoped to this
// store only; it never touches other bounded contexts.
func (s *MemoryJobStore) Reset(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.jobs = make(map[string]*domain.AutomationJob)
	s.logger.Info("job store reset")
	return nil
}
