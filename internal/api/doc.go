// Package api hosts the HTTP server, middleware, and REST handlers for
// the extraction service. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/extract for one-off extraction, POST /v1/extract/bulk and
//     /v1/extract/file for bulk runs that record a job.
//   - GET /v1/reports/{name} to download a stored report artifact.
//   - GET /v1/jobs and /v1/jobs/{job_id} for job history.
package api
