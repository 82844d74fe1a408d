package jobs

import (
	"context"
	"sync"
	"time"

	"dealfinder/models"
)

// MemoryStore keeps jobs in process memory. State is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]models.Job
	results map[string]*models.Payload
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]models.Job),
		results: make(map[string]*models.Payload),
	}
}

func (s *MemoryStore) Create(ctx context.Context, job models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return ErrExists
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	return job, nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*models.Job)) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	next, err := applyUpdate(job, fn)
	if err != nil {
		return job, err
	}
	s.jobs[id] = next
	return next, nil
}

func (s *MemoryStore) SaveResult(ctx context.Context, id string, payload *models.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	s.results[id] = payload
	return nil
}

func (s *MemoryStore) Result(ctx context.Context, id string) (*models.Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.results[id]
	if !ok {
		return nil, ErrNotFound
	}
	return payload, nil
}

func (s *MemoryStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, job := range s.jobs {
		if job.IsTerminal() && job.LastUpdate.Before(cutoff) {
			delete(s.jobs, id)
			delete(s.results, id)
			evicted++
		}
	}
	return evicted, nil
}

func (s *MemoryStore) Active(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, job := range s.jobs {
		if !job.IsTerminal() {
			n++
		}
	}
	return n, nil
}
