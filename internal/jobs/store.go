// Package jobs persists extraction job records for audit and history.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound signals that the requested job does not exist.
var ErrNotFound = errors.New("job not found")

// ErrExists signals a duplicate job ID on create.
var ErrExists = errors.New("job already exists")

// Status tracks a job through its lifecycle.
type Status string

// Job statuses persisted in the status column.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ParseStatus validates a status value from user input.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusQueued, StatusRunning, StatusSucceeded, StatusFailed:
		return Status(raw), nil
	default:
		return "", fmt.Errorf("unknown job status %q", raw)
	}
}

// IsTerminal reports whether the status ends the job lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Counters aggregates per-job outcomes.
type Counters struct {
	Sites     int `json:"sites"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Emails    int `json:"emails"`
	Phones    int `json:"phones"`
	Retried   int `json:"retried"`
}

// Job is one extraction run over a URL list.
type Job struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	Artifact  string     `json:"artifact,omitempty"`
	URI       string     `json:"uri,omitempty"`
	Status    Status     `json:"status"`
	ErrorText string     `json:"error,omitempty"`
	Counters  Counters   `json:"counters"`
	Created   time.Time  `json:"created_at"`
	Started   *time.Time `json:"started_at,omitempty"`
	Finished  *time.Time `json:"finished_at,omitempty"`
}

// Store persists jobs.
type Store interface {
	// CreateJob stores a new job. The job arrives in queued status.
	CreateJob(ctx context.Context, job Job) error
	// UpdateJobStatus moves a job through its lifecycle, stamping
	// started/finished times as the status demands.
	UpdateJobStatus(ctx context.Context, jobID string, status Status, errText string, counters Counters) error
	// AttachArtifact records the report artifact written for the job.
	AttachArtifact(ctx context.Context, jobID, artifact, uri string) error
	// GetJob fetches a job by ID or returns ErrNotFound.
	GetJob(ctx context.Context, jobID string) (Job, error)
	// ListJobs returns jobs filtered by optional status, newest first.
	ListJobs(ctx context.Context, status *Status, limit, offset int) ([]Job, error)
}
