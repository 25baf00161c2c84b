// Package collyfetcher implements the plain-HTTP Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gocolly/colly/v2"

	"github.com/leadfinch/contact-crawler/internal/contact"
)

// Config controls collector behavior.
type Config struct {
	UserAgent      string
	RespectRobots  bool
	Timeout        time.Duration
	MaxBodyBytes   int
	MaxRetries     uint64
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Fetcher implements contact.Fetcher with one collector clone per
// request. Scheme fallback and transient-error retry happen here, so
// callers see a single terminal outcome per URL.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	transport     http.RoundTripper
}

// New builds a Fetcher. The shared transport pools connections across
// request clones and shields fetches from flaky robots.txt probes.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector()
	// Clones share the visit storage and retries revisit the same URL.
	c.AllowURLRevisit = true
	transport := newRobotsFallbackTransport(newHTTPTransport())
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		transport:     transport,
	}
}

// Fetch tries the scheme candidates for rawURL in order and returns
// the first successful page. When every candidate fails the error
// wraps contact.ErrUnreachable.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (contact.Page, error) {
	var lastErr error
	for _, candidate := range schemeCandidates(rawURL) {
		page, err := f.fetchWithRetry(ctx, candidate)
		if err == nil {
			page.URL = rawURL
			return page, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return contact.Page{}, fmt.Errorf("fetch %s: %w (%v)", rawURL, contact.ErrUnreachable, lastErr)
}

// fetchWithRetry runs one scheme candidate under the exponential
// backoff policy. Permanent failures (4xx, robots denial, context
// cancellation) stop the retry loop immediately.
func (f *Fetcher) fetchWithRetry(ctx context.Context, fetchURL string) (contact.Page, error) {
	var page contact.Page
	operation := func() error {
		fetched, err := f.fetchOnce(ctx, fetchURL)
		if err != nil {
			return err
		}
		page = fetched
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	if f.cfg.BackoffInitial > 0 {
		expo.InitialInterval = f.cfg.BackoffInitial
	}
	if f.cfg.BackoffMax > 0 {
		expo.MaxInterval = f.cfg.BackoffMax
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, f.cfg.MaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return contact.Page{}, err
	}
	return page, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, fetchURL string) (contact.Page, error) {
	var (
		page     contact.Page
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	if f.cfg.MaxBodyBytes > 0 {
		collector.MaxBodySize = f.cfg.MaxBodyBytes
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)

	collector.OnResponse(func(r *colly.Response) {
		page = contact.Page{
			URL:        fetchURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = statusFailure(r.StatusCode)
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(fetchURL)
	}()

	select {
	case <-ctx.Done():
		return contact.Page{}, backoff.Permanent(fmt.Errorf("fetch canceled: %w", ctx.Err()))
	case err := <-done:
		if err != nil && fetchErr == nil {
			return contact.Page{}, backoff.Permanent(fmt.Errorf("visit %s: %w", fetchURL, err))
		}
	}
	if fetchErr != nil {
		return contact.Page{}, fetchErr
	}
	if page.StatusCode < 200 || page.StatusCode >= 300 {
		return contact.Page{}, statusFailure(page.StatusCode)
	}
	return page, nil
}

// statusFailure classifies a non-2xx status for the retry policy:
// server errors are worth another attempt, everything else is not.
func statusFailure(statusCode int) error {
	err := fmt.Errorf("status %d", statusCode)
	if statusCode >= 500 {
		return err
	}
	return backoff.Permanent(err)
}

// schemeCandidates expands rawURL into the fetch order mandated for
// inputs: as given (https assumed when bare), then the flipped scheme.
func schemeCandidates(rawURL string) []string {
	primary := contact.EnsureScheme(rawURL)
	flipped := flipScheme(primary)
	if flipped == "" {
		return []string{primary}
	}
	return []string{primary, flipped}
}

func flipScheme(fetchURL string) string {
	switch {
	case strings.HasPrefix(fetchURL, "https://"):
		return "http://" + strings.TrimPrefix(fetchURL, "https://")
	case strings.HasPrefix(fetchURL, "http://"):
		return "https://" + strings.TrimPrefix(fetchURL, "http://")
	}
	return ""
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
