// Package headless renders JavaScript-dependent pages in a real browser.
package headless

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/leadfinch/contact-crawler/internal/contact"
)

// ErrDisabled indicates headless fetching is turned off in configuration.
var ErrDisabled = errors.New("headless fetching disabled")

// Config controls the browser pool.
type Config struct {
	UserAgent   string
	MaxParallel int
	NavTimeout  time.Duration
	DomainQPS   float64
}

// Fetcher implements contact.Fetcher with headless Chrome tabs. One
// browser process serves all fetches; sem bounds open tabs and
// domainQPS throttles renders per host.
type Fetcher struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	logger          *zap.Logger
	sem             chan struct{}
	navTimeout      time.Duration
	domainQPS       float64
	domainLimiters  sync.Map
	userAgent       string
}

// New launches the browser and verifies it responds before returning.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if cfg.MaxParallel <= 0 {
		return nil, ErrDisabled
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 25 * time.Second
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Fetcher{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		logger:          logger,
		sem:             make(chan struct{}, cfg.MaxParallel),
		navTimeout:      cfg.NavTimeout,
		domainQPS:       cfg.DomainQPS,
		userAgent:       cfg.UserAgent,
	}, nil
}

// Close tears down the browser and allocator contexts.
func (f *Fetcher) Close() {
	if f == nil {
		return
	}
	f.browserCancel()
	f.allocatorCancel()
}

// Fetch renders rawURL in a fresh tab and returns the DOM after page
// scripts had a chance to run.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (contact.Page, error) {
	if f == nil {
		return contact.Page{}, ErrDisabled
	}

	release, err := f.acquireSlot(ctx)
	if err != nil {
		return contact.Page{}, err
	}
	defer release()

	fetchURL := contact.EnsureScheme(rawURL)
	if err := f.waitDomainBudget(ctx, fetchURL); err != nil {
		return contact.Page{}, fmt.Errorf("render rate limit: %w", err)
	}

	f.logger.Debug("rendering page", zap.String("url", fetchURL))

	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, f.navTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	chromedp.ListenTarget(tabCtx, meta.observe)

	start := time.Now()
	html, err := f.runChromedp(taskCtx, fetchURL)
	if err != nil {
		return contact.Page{}, fmt.Errorf("render %s: %w (%v)", rawURL, contact.ErrUnreachable, err)
	}

	status := meta.status()
	if status >= http.StatusBadRequest {
		return contact.Page{}, fmt.Errorf("render %s: %w (status %d)", rawURL, contact.ErrUnreachable, status)
	}

	return contact.Page{
		URL:          rawURL,
		FinalURL:     meta.finalURL(fetchURL),
		StatusCode:   status,
		Body:         []byte(html),
		Duration:     time.Since(start),
		UsedHeadless: true,
	}, nil
}

func (f *Fetcher) runChromedp(ctx context.Context, fetchURL string) (string, error) {
	var html string
	tasks := chromedp.Tasks{network.Enable()}
	if f.userAgent != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(f.userAgent))
	}
	tasks = append(tasks,
		chromedp.Navigate(fetchURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(ctx, tasks); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (f *Fetcher) acquireSlot(ctx context.Context) (func(), error) {
	if f.sem == nil {
		return func() {}, nil
	}
	select {
	case f.sem <- struct{}{}:
		return func() { <-f.sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire render slot: %w", ctx.Err())
	}
}

func (f *Fetcher) waitDomainBudget(ctx context.Context, fetchURL string) error {
	if f.domainQPS <= 0 {
		return nil
	}
	parsed, err := url.Parse(fetchURL)
	if err != nil {
		return fmt.Errorf("parse render url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	val, _ := f.domainLimiters.LoadOrStore(host, rate.NewLimiter(rate.Limit(f.domainQPS), 1))
	limiter, ok := val.(*rate.Limiter)
	if !ok {
		return fmt.Errorf("unexpected limiter type %T", val)
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait limiter: %w", err)
	}
	return nil
}

// responseMeta records the first document response seen on the tab.
// Iframes emit further document responses; the first one belongs to
// the page itself.
type responseMeta struct {
	once       sync.Once
	statusCode int
	url        string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) observe(ev interface{}) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.once.Do(func() {
		m.statusCode = int(resp.Response.Status)
		m.url = resp.Response.URL
	})
}

// status reports the captured document status. Some targets never emit
// a document event, in which case the render that produced HTML counts
// as a 200.
func (m *responseMeta) status() int {
	if m.statusCode == 0 {
		return http.StatusOK
	}
	return m.statusCode
}

func (m *responseMeta) finalURL(fallback string) string {
	if m.url == "" {
		return fallback
	}
	return m.url
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
