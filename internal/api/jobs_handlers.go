package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadfinch/contact-crawler/internal/jobs"
	"github.com/leadfinch/contact-crawler/internal/storage"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 500
)

// validArtifactName admits only names the report writer produces, which
// keeps arbitrary object paths out of the download route.
var validArtifactName = regexp.MustCompile(`^results_[0-9a-f]{32}\.csv$`)

// downloadReport handles GET /v1/reports/{name}. It streams the stored
// CSV artifact with an attachment disposition.
func (s *Server) downloadReport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !validArtifactName.MatchString(name) {
		writeError(w, http.StatusBadRequest, "invalid report name")
		return
	}
	data, err := s.blobs.GetObject(r.Context(), s.objectPath(name))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		s.logger.Error("report read failed", zap.String("name", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read report")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("report write failed", zap.String("name", name), zap.Error(err))
	}
}

// objectPath joins the configured storage prefix onto an artifact name,
// mirroring how the bulk runner stores it.
func (s *Server) objectPath(name string) string {
	prefix := strings.Trim(s.cfg.Storage.Prefix, "/")
	if prefix == "" {
		return name
	}
	return fmt.Sprintf("%s/%s", prefix, name)
}

// getJob handles GET /v1/jobs/{job_id}. It returns {"job": {...}} on
// success, 400 for malformed IDs, 404 for unknown jobs.
func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseJobID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := s.jobStore.GetJob(r.Context(), jobID.String())
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("get job failed", zap.String("job_id", jobID.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

// listJobs handles GET /v1/jobs?status=&limit=&offset=. It returns
// {"jobs": [...]} newest first, 400 for invalid filters.
func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultJobLimit, maxJobLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var status *jobs.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, parseErr := jobs.ParseStatus(raw)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, parseErr.Error())
			return
		}
		status = &parsed
	}
	list, err := s.jobStore.ListJobs(r.Context(), status, limit, offset)
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": list})
}

func parseJobID(r *http.Request) (uuid.UUID, error) {
	jobIDStr := chi.URLParam(r, "job_id")
	if jobIDStr == "" {
		return uuid.UUID{}, errors.New("job_id is required")
	}
	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		return uuid.UUID{}, errors.New("invalid job_id")
	}
	return jobID, nil
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
