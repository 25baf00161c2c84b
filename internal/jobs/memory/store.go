// Package memory provides an in-memory job store for development and
// tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/leadfinch/contact-crawler/internal/jobs"
)

// Store keeps jobs in a map guarded by a RWMutex.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]jobs.Job
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]jobs.Job),
	}
}

// CreateJob stores a new job.
func (s *Store) CreateJob(_ context.Context, job jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s: %w", job.ID, jobs.ErrExists)
	}
	if job.Created.IsZero() {
		job.Created = time.Now().UTC()
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus updates the status and counters for a job.
func (s *Store) UpdateJobStatus(_ context.Context, jobID string, status jobs.Status, errText string, counters jobs.Counters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, jobs.ErrNotFound)
	}
	job.Status = status
	job.ErrorText = errText
	job.Counters = counters
	now := time.Now().UTC()
	if status == jobs.StatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if status.IsTerminal() {
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// AttachArtifact records the report artifact written for a job.
func (s *Store) AttachArtifact(_ context.Context, jobID, artifact, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, jobs.ErrNotFound)
	}
	job.Artifact = artifact
	job.URI = uri
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(_ context.Context, jobID string) (jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return jobs.Job{}, fmt.Errorf("job %s: %w", jobID, jobs.ErrNotFound)
	}
	return job, nil
}

// ListJobs returns jobs filtered by optional status, newest first.
func (s *Store) ListJobs(_ context.Context, status *jobs.Status, limit, offset int) ([]jobs.Job, error) {
	s.mu.RLock()
	matched := make([]jobs.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if status != nil && job.Status != *status {
			continue
		}
		matched = append(matched, job)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Created.Equal(matched[j].Created) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].Created.After(matched[j].Created)
	})

	if offset >= len(matched) {
		return []jobs.Job{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
