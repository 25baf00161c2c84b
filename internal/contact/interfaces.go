package contact

import (
	"context"
	"errors"
	"time"
)

// ErrUnreachable marks a fetch that failed after scheme fallback and
// retries were exhausted. Callers match it with errors.Is.
var ErrUnreachable = errors.New("site unreachable")

// Fetcher retrieves one URL and returns the document plus metadata.
// Implementations own scheme fallback, redirects, timeouts and retry;
// a non-2xx terminal status is an error wrapping ErrUnreachable.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces identifiers for jobs and report artifacts.
type IDGenerator interface {
	NewID() (string, error)
}
