// Package orchestrator runs bulk extraction over a bounded worker
// pool and writes the report artifact.
package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leadfinch/contact-crawler/internal/contact"
	"github.com/leadfinch/contact-crawler/internal/metrics"
	"github.com/leadfinch/contact-crawler/internal/publisher"
	"github.com/leadfinch/contact-crawler/internal/report"
	"github.com/leadfinch/contact-crawler/internal/storage"
)

// Scraper produces the terminal Result for one input URL.
type Scraper interface {
	Scrape(ctx context.Context, rawURL string) contact.Result
}

// Config controls Orchestrator behavior.
type Config struct {
	Concurrency int
	RetryFailed bool
	ContentType string
	Backend     string
	Prefix      string
}

// Orchestrator fans a URL list over a fixed Scrape pool, retries
// failures once, and stores the CSV report.
type Orchestrator struct {
	scraper Scraper
	store   storage.Provider
	events  publisher.Publisher
	ids     contact.IDGenerator
	clock   contact.Clock
	cfg     Config
	logger  *zap.Logger
}

// New constructs an Orchestrator.
func New(
	scraper Scraper,
	store storage.Provider,
	events publisher.Publisher,
	ids contact.IDGenerator,
	clock contact.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/csv"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		scraper: scraper,
		store:   store,
		events:  events,
		ids:     ids,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run scrapes every URL, retries failures once when enabled, stores
// the CSV artifact, and publishes a completion event. Per-site
// failures land in rows, never in the returned error; only an
// artifact-store failure makes Run fail. jobID may be empty for runs
// without a job record.
func (o *Orchestrator) Run(ctx context.Context, jobID string, urls []string) (contact.Report, error) {
	results := make([]contact.Result, len(urls))
	indexes := make([]int, len(urls))
	for i := range urls {
		indexes[i] = i
	}

	o.logger.Info("bulk run started",
		zap.String("job_id", jobID),
		zap.Int("urls", len(urls)),
		zap.Int("concurrency", o.cfg.Concurrency))

	o.runPass(ctx, urls, results, indexes)

	retried := 0
	if o.cfg.RetryFailed {
		failed := failedIndexes(results)
		if len(failed) > 0 {
			o.logger.Info("retrying failed sites",
				zap.String("job_id", jobID),
				zap.Int("count", len(failed)))
			for range failed {
				metrics.ObserveSiteRetry()
			}
			o.runPass(ctx, urls, results, failed)
			retried = len(failed)
		}
	}

	rep := contact.Report{Rows: results, Retried: retried}

	artifact, uri, err := o.storeArtifact(ctx, results)
	if err != nil {
		return contact.Report{}, err
	}
	rep.Artifact = artifact
	rep.URI = uri

	o.publishEvent(ctx, jobID, rep)

	o.logger.Info("bulk run finished",
		zap.String("job_id", jobID),
		zap.String("artifact", artifact),
		zap.Int("succeeded", rep.Succeeded()),
		zap.Int("failed", rep.Failed()),
		zap.Int("retried", retried))

	return rep, nil
}

// runPass consumes indexes from a channel so the concurrency bound
// holds no matter how many URLs arrive. results[i] is only ever
// written by the worker holding index i.
func (o *Orchestrator) runPass(ctx context.Context, urls []string, results []contact.Result, indexes []int) {
	if len(indexes) == 0 {
		return
	}
	workers := o.cfg.Concurrency
	if workers > len(indexes) {
		workers = len(indexes)
	}

	work := make(chan int, len(indexes))
	for _, i := range indexes {
		work <- i
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()
			for i := range work {
				res := o.scraper.Scrape(ctx, urls[i])
				results[i] = res
				metrics.ObserveSiteProcessed(res.URL, res.Failed(), time.Duration(res.DurationMs)*time.Millisecond)
				metrics.ObserveContactsExtracted(len(res.Emails), len(res.Phones))
			}
		}()
	}
	wg.Wait()
}

func (o *Orchestrator) storeArtifact(ctx context.Context, rows []contact.Result) (string, string, error) {
	id, err := o.ids.NewID()
	if err != nil {
		return "", "", fmt.Errorf("artifact id: %w", err)
	}
	name := report.Filename(id)

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, rows); err != nil {
		return "", "", fmt.Errorf("encode report: %w", err)
	}

	uri, err := o.store.PutObject(ctx, o.objectPath(name), o.cfg.ContentType, &buf)
	metrics.ObserveReportWritten(o.cfg.Backend, err)
	if err != nil {
		return "", "", fmt.Errorf("store report %s: %w", name, err)
	}
	return name, uri, nil
}

func (o *Orchestrator) objectPath(name string) string {
	prefix := strings.Trim(o.cfg.Prefix, "/")
	if prefix == "" {
		return name
	}
	return fmt.Sprintf("%s/%s", prefix, name)
}

func (o *Orchestrator) publishEvent(ctx context.Context, jobID string, rep contact.Report) {
	if o.events == nil {
		return
	}
	emails, phones := rep.Contacts()
	event := publisher.ReportEvent{
		JobID:      jobID,
		Artifact:   rep.Artifact,
		URI:        rep.URI,
		Sites:      len(rep.Rows),
		Succeeded:  rep.Succeeded(),
		Failed:     rep.Failed(),
		Retried:    rep.Retried,
		Emails:     emails,
		Phones:     phones,
		FinishedAt: o.clock.Now(),
	}
	if _, err := o.events.Publish(ctx, event); err != nil {
		o.logger.Warn("report event publish failed",
			zap.String("job_id", jobID),
			zap.String("artifact", rep.Artifact),
			zap.Error(err))
	}
}

func failedIndexes(results []contact.Result) []int {
	out := []int{}
	for i, res := range results {
		if res.Failed() {
			out = append(out, i)
		}
	}
	return out
}
