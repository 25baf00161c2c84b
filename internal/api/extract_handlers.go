package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/leadfinch/contact-crawler/internal/contact"
	"github.com/leadfinch/contact-crawler/internal/jobs"
	"github.com/leadfinch/contact-crawler/internal/metrics"
	"github.com/leadfinch/contact-crawler/internal/report"
)

// maxUploadBytes caps the in-memory portion of a multipart upload.
const maxUploadBytes = 10 << 20

type bulkRequest struct {
	URLs []string `json:"urls"`
}

type bulkResponse struct {
	JobID     string           `json:"job_id"`
	Report    string           `json:"report"`
	ReportURL string           `json:"report_url"`
	Rows      []contact.Result `json:"rows"`
	Retried   int              `json:"retried"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// extractSingle handles GET /v1/extract?url=. An unreachable site is
// still a 200: the failure lives in the result's error field.
func (s *Server) extractSingle(w http.ResponseWriter, r *http.Request) {
	rawURL := strings.TrimSpace(r.URL.Query().Get("url"))
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}
	res := s.scraper.Scrape(r.Context(), rawURL)
	metrics.ObserveSiteProcessed(res.URL, res.Failed(), time.Duration(res.DurationMs)*time.Millisecond)
	metrics.ObserveContactsExtracted(len(res.Emails), len(res.Phones))
	writeJSON(w, http.StatusOK, res)
}

// extractBulk handles POST /v1/extract/bulk.
func (s *Server) extractBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	urls, err := s.checkURLList(req.URLs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.runBulk(w, r, "api_bulk", urls)
}

// extractFile handles POST /v1/extract/file. The upload is a CSV whose
// first column holds the URLs; a leading "url" header row is skipped.
func (s *Server) extractFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	urls, err := report.ReadURLColumn(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	urls, err = s.checkURLList(urls)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.runBulk(w, r, "api_file", urls)
}

func (s *Server) checkURLList(urls []string) ([]string, error) {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("at least one URL is required")
	}
	if limit := s.cfg.Scraper.MaxBulkURLs; limit > 0 && len(out) > limit {
		return nil, fmt.Errorf("too many URLs: %d exceeds the limit of %d", len(out), limit)
	}
	return out, nil
}

// runBulk records a job around one synchronous orchestrator run and
// writes the bulk response.
func (s *Server) runBulk(w http.ResponseWriter, r *http.Request, source string, urls []string) {
	jobID, err := s.idGen.NewID()
	if err != nil {
		s.logger.Error("job id generation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	job := jobs.Job{
		ID:      jobID,
		Source:  source,
		Status:  jobs.StatusQueued,
		Created: s.clock.Now(),
	}
	if err := s.jobStore.CreateJob(r.Context(), job); err != nil {
		s.logger.Error("job create failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}
	metrics.ObserveJob(string(jobs.StatusQueued))
	s.setJobStatus(r.Context(), jobID, jobs.StatusRunning, "", jobs.Counters{})

	rep, err := s.runner.Run(r.Context(), jobID, urls)

	// The job record must survive a client disconnect mid-run.
	finishCtx := context.WithoutCancel(r.Context())
	if err != nil {
		s.setJobStatus(finishCtx, jobID, jobs.StatusFailed, err.Error(), jobs.Counters{Sites: len(urls)})
		s.logger.Error("bulk run failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "bulk extraction failed")
		return
	}

	emails, phones := rep.Contacts()
	counters := jobs.Counters{
		Sites:     len(rep.Rows),
		Succeeded: rep.Succeeded(),
		Failed:    rep.Failed(),
		Emails:    emails,
		Phones:    phones,
		Retried:   rep.Retried,
	}
	status, errText := finalStatus(rep)
	s.setJobStatus(finishCtx, jobID, status, errText, counters)
	if err := s.jobStore.AttachArtifact(finishCtx, jobID, rep.Artifact, rep.URI); err != nil {
		s.logger.Warn("artifact attach failed", zap.String("job_id", jobID), zap.Error(err))
	}

	writeJSON(w, http.StatusOK, bulkResponse{
		JobID:     jobID,
		Report:    rep.Artifact,
		ReportURL: "/v1/reports/" + rep.Artifact,
		Rows:      rep.Rows,
		Retried:   rep.Retried,
		Succeeded: rep.Succeeded(),
		Failed:    rep.Failed(),
	})
}

// setJobStatus logs rather than aborts: a failed bookkeeping write must
// not lose an extraction that already ran.
func (s *Server) setJobStatus(ctx context.Context, jobID string, status jobs.Status, errText string, counters jobs.Counters) {
	if err := s.jobStore.UpdateJobStatus(ctx, jobID, status, errText, counters); err != nil {
		s.logger.Error("job status update failed",
			zap.String("job_id", jobID),
			zap.String("status", string(status)),
			zap.Error(err))
		return
	}
	metrics.ObserveJob(string(status))
}

func finalStatus(rep contact.Report) (jobs.Status, string) {
	if len(rep.Rows) > 0 && rep.Succeeded() == 0 {
		return jobs.StatusFailed, "no sites were reachable"
	}
	return jobs.StatusSucceeded, ""
}
