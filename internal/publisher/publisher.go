// Package publisher emits report completion events to downstream
// consumers.
package publisher

import (
	"context"
	"time"
)

// ReportEvent announces a finished extraction run and its artifact.
// JobID is empty for runs without a job record (CLI).
type ReportEvent struct {
	JobID      string    `json:"job_id,omitempty"`
	Artifact   string    `json:"artifact"`
	URI        string    `json:"uri"`
	Sites      int       `json:"sites"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Retried    int       `json:"retried"`
	Emails     int       `json:"emails"`
	Phones     int       `json:"phones"`
	FinishedAt time.Time `json:"finished_at"`
}

// Publisher sends report events to a broker.
type Publisher interface {
	// Publish sends the event and returns the broker-assigned message ID.
	Publish(ctx context.Context, event ReportEvent) (string, error)

	// Close cleans up any client connections and resources.
	Close() error
}

// NoOp discards events. It serves deployments without a broker.
type NoOp struct{}

// Publish for NoOp does nothing and returns an empty ID.
func (NoOp) Publish(_ context.Context, _ ReportEvent) (string, error) { return "", nil }

// Close for NoOp does nothing and returns nil.
func (NoOp) Close() error { return nil }
