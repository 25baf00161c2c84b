// Package metrics exposes Prometheus collectors for the extraction service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	sitesProcessedTotal        *prometheus.CounterVec
	siteRetriesTotal           prometheus.Counter
	pagesFetchedTotal          *prometheus.CounterVec
	emailsExtractedTotal       prometheus.Counter
	phonesExtractedTotal       prometheus.Counter
	extractDurationSeconds     *prometheus.HistogramVec
	reportsWrittenTotal        *prometheus.CounterVec
	robotsFallbackTotal        prometheus.Counter
	jobsTotal                  *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		sitesProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_sites_processed_total",
				Help: "Total number of sites run through the pipeline, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		siteRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_site_retries_total",
				Help: "Total number of failed sites that were retried.",
			},
		)

		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_pages_fetched_total",
				Help: "Total number of page fetches, labeled by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		)

		emailsExtractedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_emails_extracted_total",
				Help: "Total number of email addresses extracted.",
			},
		)

		phonesExtractedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_phones_extracted_total",
				Help: "Total number of phone numbers extracted.",
			},
		)

		extractDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "contact_extract_duration_seconds",
				Help:    "Histogram of per-site extraction latencies, labeled by outcome.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"},
		)

		reportsWrittenTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_reports_written_total",
				Help: "Total number of CSV reports written, labeled by backend and outcome.",
			},
			[]string{"backend", "outcome"},
		)

		robotsFallbackTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "contact_robots_fallback_total",
				Help: "Total robots.txt probes answered with the synthetic allow-all response.",
			},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contact_jobs_total",
				Help: "Total number of extraction jobs, labeled by status.",
			},
			[]string{"status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "contact_active_workers",
				Help: "Number of workers currently scraping a site.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSiteProcessed records one finished site with its outcome and latency.
func ObserveSiteProcessed(site string, failed bool, duration time.Duration) {
	Init()
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	sitesProcessedTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
	extractDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveSiteRetry counts a failed site entering the retry pass.
func ObserveSiteRetry() {
	Init()
	siteRetriesTotal.Inc()
}

// ObservePageFetch counts one page fetch attempt for the given mode.
func ObservePageFetch(mode string, err error) {
	Init()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	pagesFetchedTotal.WithLabelValues(mode, outcome).Inc()
}

// ObserveContactsExtracted adds extracted contact counts.
func ObserveContactsExtracted(emails, phones int) {
	Init()
	if emails > 0 {
		emailsExtractedTotal.Add(float64(emails))
	}
	if phones > 0 {
		phonesExtractedTotal.Add(float64(phones))
	}
}

// ObserveReportWritten counts a report upload to the given backend.
func ObserveReportWritten(backend string, err error) {
	Init()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	reportsWrittenTotal.WithLabelValues(backend, outcome).Inc()
}

// ObserveRobotsFallback counts a robots.txt probe that fell back to allow-all.
func ObserveRobotsFallback() {
	Init()
	robotsFallbackTotal.Inc()
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	Init()
	jobsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
