package orchestrator

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/leadfinch/contact-crawler/internal/contact"
	"github.com/leadfinch/contact-crawler/internal/publisher"
	"github.com/leadfinch/contact-crawler/internal/storage"
	storagememory "github.com/leadfinch/contact-crawler/internal/storage/memory"
)

type fakeScraper struct {
	mu       sync.Mutex
	attempts map[string]int
	failures map[string]int
	delay    time.Duration
	current  int64
	maxSeen  int64
}

func newFakeScraper(failures map[string]int) *fakeScraper {
	return &fakeScraper{
		attempts: map[string]int{},
		failures: failures,
	}
}

func (s *fakeScraper) Scrape(_ context.Context, rawURL string) contact.Result {
	cur := atomic.AddInt64(&s.current, 1)
	for {
		old := atomic.LoadInt64(&s.maxSeen)
		if cur <= old || atomic.CompareAndSwapInt64(&s.maxSeen, old, cur) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.attempts[rawURL]++
	fail := s.failures[rawURL] > 0
	if fail {
		s.failures[rawURL]--
	}
	s.mu.Unlock()
	atomic.AddInt64(&s.current, -1)

	if fail {
		return contact.Result{
			URL:        rawURL,
			Emails:     []string{},
			Phones:     []string{},
			Error:      contact.ReasonUnreachable,
			DurationMs: 1,
		}
	}
	return contact.Result{
		URL:        rawURL,
		Emails:     []string{"info@acme.example"},
		Phones:     []string{"+911234567890"},
		DurationMs: 1,
	}
}

func (s *fakeScraper) attemptCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[url]
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, string, io.Reader) (string, error) {
	return "", errors.New("disk full")
}

func (failingStore) GetObject(context.Context, string) ([]byte, error) {
	return nil, storage.ErrNotFound
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, publisher.ReportEvent) (string, error) {
	return "", errors.New("broker offline")
}

func (failingPublisher) Close() error { return nil }

type recordingPublisher struct {
	mu     sync.Mutex
	events []publisher.ReportEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event publisher.ReportEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return "msg-1", nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) all() []publisher.ReportEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publisher.ReportEvent, len(p.events))
	copy(out, p.events)
	return out
}

const testUUID = "0189aefb-2c61-7cc8-a2f0-f3c1f0a1b2c3"

func newTestOrchestrator(scraper Scraper, store storage.Provider, events publisher.Publisher, cfg Config) *Orchestrator {
	return New(
		scraper,
		store,
		events,
		fixedIDs{id: testUUID},
		fixedClock{at: time.Unix(1780000000, 0).UTC()},
		cfg,
		zap.NewNop(),
	)
}

func TestRunKeepsInputOrder(t *testing.T) {
	t.Parallel()

	scraper := newFakeScraper(map[string]int{"b.example": 9})
	store := storagememory.NewBlobStore()
	o := newTestOrchestrator(scraper, store, publisher.NoOp{}, Config{Concurrency: 4})

	urls := []string{"a.example", "b.example", "c.example"}
	rep, err := o.Run(context.Background(), "", urls)
	require.NoError(t, err)

	require.Len(t, rep.Rows, 3)
	for i, url := range urls {
		require.Equal(t, url, rep.Rows[i].URL)
	}
	require.Empty(t, rep.Rows[0].Error)
	require.Equal(t, contact.ReasonUnreachable, rep.Rows[1].Error)
	require.Empty(t, rep.Rows[2].Error)
	require.Equal(t, 2, rep.Succeeded())
	require.Equal(t, 1, rep.Failed())

	require.Regexp(t, regexp.MustCompile(`^results_[0-9a-f]{32}\.csv$`), rep.Artifact)
	require.Equal(t, "memory://"+rep.Artifact, rep.URI)

	data, err := store.GetObject(context.Background(), rep.Artifact)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], "Contact Page")
	require.Contains(t, lines[2], contact.ReasonUnreachable)
}

func TestRunRetryReplacesFailedRow(t *testing.T) {
	t.Parallel()

	scraper := newFakeScraper(map[string]int{"b.example": 1})
	store := storagememory.NewBlobStore()
	o := newTestOrchestrator(scraper, store, publisher.NoOp{}, Config{Concurrency: 2, RetryFailed: true})

	rep, err := o.Run(context.Background(), "job-1", []string{"a.example", "b.example", "c.example"})
	require.NoError(t, err)

	require.Equal(t, 1, rep.Retried)
	require.Empty(t, rep.Rows[1].Error)
	require.Equal(t, 3, rep.Succeeded())
	require.Equal(t, 1, scraper.attemptCount("a.example"))
	require.Equal(t, 2, scraper.attemptCount("b.example"))
	require.Equal(t, 1, scraper.attemptCount("c.example"))
}

func TestRunRetriesAtMostOnce(t *testing.T) {
	t.Parallel()

	scraper := newFakeScraper(map[string]int{"b.example": 9})
	store := storagememory.NewBlobStore()
	o := newTestOrchestrator(scraper, store, publisher.NoOp{}, Config{Concurrency: 2, RetryFailed: true})

	rep, err := o.Run(context.Background(), "job-1", []string{"a.example", "b.example"})
	require.NoError(t, err)

	require.Equal(t, 1, rep.Retried)
	require.Equal(t, contact.ReasonUnreachable, rep.Rows[1].Error)
	require.Equal(t, 2, scraper.attemptCount("b.example"))
}

func TestRunHoldsConcurrencyBound(t *testing.T) {
	t.Parallel()

	urls := make([]string, 20)
	failures := map[string]int{}
	for i := range urls {
		urls[i] = string(rune('a'+i)) + ".example"
	}
	scraper := newFakeScraper(failures)
	scraper.delay = 5 * time.Millisecond
	store := storagememory.NewBlobStore()
	o := newTestOrchestrator(scraper, store, publisher.NoOp{}, Config{Concurrency: 3})

	_, err := o.Run(context.Background(), "", urls)
	require.NoError(t, err)
	require.LessOrEqual(t, atomic.LoadInt64(&scraper.maxSeen), int64(3))
	require.Greater(t, atomic.LoadInt64(&scraper.maxSeen), int64(1))
}

func TestRunStoreFailureReturnsError(t *testing.T) {
	t.Parallel()

	scraper := newFakeScraper(nil)
	events := &recordingPublisher{}
	o := newTestOrchestrator(scraper, failingStore{}, events, Config{Concurrency: 1})

	_, err := o.Run(context.Background(), "", []string{"a.example"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "store report")
	require.Empty(t, events.all())
}

func TestRunPublishFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	scraper := newFakeScraper(nil)
	store := storagememory.NewBlobStore()
	o := newTestOrchestrator(scraper, store, failingPublisher{}, Config{Concurrency: 1})

	rep, err := o.Run(context.Background(), "job-1", []string{"a.example"})
	require.NoError(t, err)
	require.NotEmpty(t, rep.Artifact)
}

func TestRunPublishesCompletionEvent(t *testing.T) {
	t.Parallel()

	scraper := newFakeScraper(map[string]int{"b.example": 9})
	store := storagememory.NewBlobStore()
	events := &recordingPublisher{}
	o := newTestOrchestrator(scraper, store, events, Config{Concurrency: 2, RetryFailed: true})

	rep, err := o.Run(context.Background(), "job-7", []string{"a.example", "b.example", "c.example"})
	require.NoError(t, err)

	got := events.all()
	require.Len(t, got, 1)
	require.Equal(t, "job-7", got[0].JobID)
	require.Equal(t, rep.Artifact, got[0].Artifact)
	require.Equal(t, rep.URI, got[0].URI)
	require.Equal(t, 3, got[0].Sites)
	require.Equal(t, 2, got[0].Succeeded)
	require.Equal(t, 1, got[0].Failed)
	require.Equal(t, 1, got[0].Retried)
	require.Equal(t, 2, got[0].Emails)
	require.Equal(t, 2, got[0].Phones)
	require.Equal(t, time.Unix(1780000000, 0).UTC(), got[0].FinishedAt)
}

func TestRunPrefixesObjectPath(t *testing.T) {
	t.Parallel()

	scraper := newFakeScraper(nil)
	store := storagememory.NewBlobStore()
	o := newTestOrchestrator(scraper, store, publisher.NoOp{}, Config{Concurrency: 1, Prefix: "/reports/"})

	rep, err := o.Run(context.Background(), "", []string{"a.example"})
	require.NoError(t, err)
	require.Equal(t, "memory://reports/"+rep.Artifact, rep.URI)

	_, err = store.GetObject(context.Background(), "reports/"+rep.Artifact)
	require.NoError(t, err)
}
