package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/menu-extractor/internal/config"
	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
	"github.com/kirillkom/menu-extractor/internal/core/usecase"
	"github.com/kirillkom/menu-extractor/internal/export"
	"github.com/kirillkom/menu-extractor/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	jobs       *usecase.JobService
	collector  *usecase.MetricsCollector
	costs      *usecase.CostMonitor
	exporter   *export.Service
	classifier *usecase.ErrorClassifier
	httpMetric *metrics.HTTPServerMetrics
	capsPath   string
}

func NewRouter(
	jobs *usecase.JobService,
	collector *usecase.MetricsCollector,
	costs *usecase.CostMonitor,
	exporter *export.Service,
	httpMetric *metrics.HTTPServerMetrics,
	capsPath string,
) *Router {
	return &Router{
		jobs:       jobs,
		collector:  collector,
		costs:      costs,
		exporter:   exporter,
		classifier: usecase.NewErrorClassifier(),
		httpMetric: httpMetric,
		capsPath:   capsPath,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/jobs", rt.submitJob)
	mux.HandleFunc("/v1/jobs/", rt.jobSubroutes)
	mux.HandleFunc("/v1/metrics/overview", rt.metricsOverview)
	mux.HandleFunc("/v1/users/", rt.userSpending)
	mux.HandleFunc("/v1/admin/metrics/export", rt.exportMetrics)
	mux.HandleFunc("/v1/admin/caps/reload", rt.reloadCaps)

	var handler http.Handler = mux
	if rt.httpMetric != nil {
		mux.Handle("/metrics", rt.httpMetric.Handler())
		handler = rt.httpMetric.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitRequest struct {
	UserID        string `json:"user_id"`
	ImageRef      string `json:"image_ref"`
	ContentHash   string `json:"content_hash"`
	SchemaVersion string `json:"schema_version,omitempty"`
	PromptVersion string `json:"prompt_version,omitempty"`
	Force         bool   `json:"force,omitempty"`
}

func (rt *Router) submitJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := rt.jobs.SubmitJob(r.Context(), req.UserID, req.ImageRef, req.ContentHash, ports.SubmitOptions{
		SchemaVersion: domain.SchemaVersion(req.SchemaVersion),
		PromptVersion: req.PromptVersion,
		Force:         req.Force,
	})
	if err != nil {
		rt.writeError(w, err)
		return
	}

	if rt.httpMetric != nil {
		if result.Cached {
			rt.httpMetric.RecordCacheHit(serviceName)
		} else {
			rt.httpMetric.RecordSubmission(serviceName, string(result.Job.SchemaVersion))
		}
	}

	status := http.StatusAccepted
	if result.Cached {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// jobSubroutes handles GET /v1/jobs/{id} and POST /v1/jobs/{id}/retry.
func (rt *Router) jobSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	if rest == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}

	if jobID, ok := strings.CutSuffix(rest, "/retry"); ok {
		rt.retryJob(w, r, jobID)
		return
	}
	if strings.Contains(rest, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	rt.getJob(w, r, rest)
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	job, err := rt.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) retryJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req struct {
		UserID string `json:"user_id"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	job, err := rt.jobs.RetryJob(r.Context(), jobID, req.UserID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) metricsOverview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	start, end, err := dateRange(r, 30)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	overview, err := rt.collector.Overview(r.Context(), start, end)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	daily, err := rt.collector.DailyBreakdown(r.Context(), start, end)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"start":    start.Format(time.RFC3339),
		"end":      end.Format(time.RFC3339),
		"overview": overview,
		"daily":    daily,
	})
}

func (rt *Router) userSpending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	userID, ok := strings.CutSuffix(rest, "/spending")
	if !ok || userID == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	spending, err := rt.collector.UserSpending(r.Context(), userID)
	if err != nil {
		rt.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, spending)
}

func (rt *Router) exportMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	start, end, err := dateRange(r, 30)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("extraction-metrics-%s-%s.xlsx", start.Format("20060102"), end.Format("20060102"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := rt.exporter.WriteDailyMetrics(r.Context(), w, start, end); err != nil {
		// Headers may already be out; log-level handling happens upstream.
		rt.writeError(w, err)
	}
}

func (rt *Router) reloadCaps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	caps, err := config.LoadSpendingCaps(rt.capsPath)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
		return
	}
	rt.costs.ReloadCaps(caps)
	writeJSON(w, http.StatusOK, map[string]any{"status": "reloaded", "caps": caps})
}

// writeError renders the taxonomy-mapped failure shape: HTTP status from the
// error kind, body from the classifier so raw internals never leak.
func (rt *Router) writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if rt.httpMetric != nil {
		if gate := gateLabel(err); gate != "" {
			rt.httpMetric.RecordGateDenial(serviceName, gate)
		}
	}
	classified := rt.classifier.Classify(err)
	body := map[string]any{"error": classified.UserFacing()}
	if classified.RetryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", classified.RetryAfter))
	}
	if status == http.StatusNotFound {
		body = map[string]any{"error": map[string]string{"title": "Not found", "message": "No such job."}}
	}
	writeJSON(w, status, body)
}

// dateRange parses optional start/end query params (YYYY-MM-DD), defaulting
// to the trailing defaultDays window.
func dateRange(r *http.Request, defaultDays int) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := now.AddDate(0, 0, -defaultDays)
	end := now

	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start: expected YYYY-MM-DD")
		}
		start = parsed
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end: expected YYYY-MM-DD")
		}
		end = parsed.AddDate(0, 0, 1)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start must be before end")
	}
	return start, end, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
