package httpadapter

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/usecase"
	"github.com/kirillkom/menu-extractor/internal/export"
)

type memJobRepo struct {
	byID       map[string]*domain.ExtractionJob
	byHash     map[string]*domain.ExtractionJob
	countSince int
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{byID: map[string]*domain.ExtractionJob{}, byHash: map[string]*domain.ExtractionJob{}}
}

func (m *memJobRepo) Insert(_ context.Context, job *domain.ExtractionJob) error {
	stored := *job
	m.byID[job.ID] = &stored
	m.byHash[job.UserID+"/"+job.ContentHash] = &stored
	return nil
}

func (m *memJobRepo) UpdateStatus(_ context.Context, jobID string, status domain.JobStatus, msg string) error {
	job, ok := m.byID[jobID]
	if !ok {
		return domain.WrapError(domain.ErrJobNotFound, "mem.update_status", io.EOF)
	}
	job.Status = status
	job.ErrorMessage = msg
	return nil
}

func (m *memJobRepo) MarkCompleted(_ context.Context, job *domain.ExtractionJob) error {
	stored := *job
	m.byID[job.ID] = &stored
	return nil
}

func (m *memJobRepo) FindByHash(_ context.Context, userID, hash string) (*domain.ExtractionJob, error) {
	job, ok := m.byHash[userID+"/"+hash]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "mem.find_by_hash", io.EOF)
	}
	return job, nil
}

func (m *memJobRepo) FindByID(_ context.Context, jobID string) (*domain.ExtractionJob, error) {
	job, ok := m.byID[jobID]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "mem.find_by_id", io.EOF)
	}
	return job, nil
}

func (m *memJobRepo) CountSince(_ context.Context, _ string, _ time.Time) (int, error) {
	return m.countSince, nil
}

type memPlanStore struct{ limit int }

func (m *memPlanStore) MonthlyJobLimit(_ context.Context, _ string) (int, error) {
	return m.limit, nil
}

type memSpendingStore struct{ user, global float64 }

func (m *memSpendingStore) UserSpendSince(_ context.Context, _ string, _ time.Time) (float64, error) {
	return m.user, nil
}

func (m *memSpendingStore) GlobalSpendSince(_ context.Context, _ time.Time) (float64, error) {
	return m.global, nil
}

type memQueue struct{ published []string }

func (m *memQueue) PublishJobQueued(_ context.Context, jobID string) error {
	m.published = append(m.published, jobID)
	return nil
}

func (m *memQueue) SubscribeJobQueued(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}

type memMetricsStore struct {
	overview domain.OverallMetrics
	daily    []domain.DailyAggregate
	spending domain.UserSpending
}

func (m *memMetricsStore) TrackExtraction(context.Context, domain.ExtractionSample) error {
	return nil
}

func (m *memMetricsStore) OverallMetrics(context.Context, time.Time, time.Time) (domain.OverallMetrics, error) {
	return m.overview, nil
}

func (m *memMetricsStore) DailyAggregates(context.Context, time.Time, time.Time) ([]domain.DailyAggregate, error) {
	return m.daily, nil
}

func (m *memMetricsStore) UserSpending(context.Context, string, time.Time) (domain.UserSpending, error) {
	return m.spending, nil
}

type routerFixture struct {
	router *Router
	repo   *memJobRepo
	queue  *memQueue
}

func newRouterFixture(caps domain.SpendingCaps, spending *memSpendingStore) *routerFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newMemJobRepo()
	queue := &memQueue{}
	store := &memMetricsStore{
		overview: domain.OverallMetrics{Extractions: 10, AvgConfidence: 0.9},
		spending: domain.UserSpending{TodayUSD: 0.05, MonthUSD: 0.40, MonthExtractions: 12},
	}
	if spending == nil {
		spending = &memSpendingStore{}
	}
	monitor := usecase.NewCostMonitor(spending, caps, logger)
	jobs := usecase.NewJobService(repo, &memPlanStore{limit: -1}, queue, monitor, usecase.JobServiceConfig{}, logger)
	collector := usecase.NewMetricsCollector(store, logger)
	router := NewRouter(jobs, collector, monitor, export.NewService(store), nil, "")
	return &routerFixture{router: router, repo: repo, queue: queue}
}

func TestSubmitJobReturnsAccepted(t *testing.T) {
	fx := newRouterFixture(domain.SpendingCaps{}, nil)
	server := httptest.NewServer(fx.router.Handler())
	defer server.Close()

	body := `{"user_id":"user-1","image_ref":"https://img.example/menu.jpg","content_hash":"hash-a"}`
	resp, err := http.Post(server.URL+"/v1/jobs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var result struct {
		Job    domain.ExtractionJob `json:"job"`
		Cached bool                 `json:"cached"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.Cached || result.Job.Status != domain.StatusQueued {
		t.Fatalf("result = %+v", result)
	}
	if len(fx.queue.published) != 1 {
		t.Fatalf("published = %v", fx.queue.published)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("request id header must be set")
	}
}

func TestSubmitJobCacheHitReturnsOK(t *testing.T) {
	fx := newRouterFixture(domain.SpendingCaps{}, nil)
	price := 9.0
	cached := &domain.ExtractionJob{
		ID:          "job-1",
		UserID:      "user-1",
		ContentHash: "hash-a",
		Status:      domain.StatusCompleted,
		Result: &domain.ExtractionResult{Categories: []domain.MenuCategory{
			{Name: "Mains", Confidence: 0.9, Items: []domain.MenuItem{{Name: "Stew", Price: &price, Confidence: 0.9}}},
		}},
	}
	fx.repo.byID[cached.ID] = cached
	fx.repo.byHash["user-1/hash-a"] = cached

	server := httptest.NewServer(fx.router.Handler())
	defer server.Close()

	body := `{"user_id":"user-1","image_ref":"https://img.example/menu.jpg","content_hash":"hash-a"}`
	resp, err := http.Post(server.URL+"/v1/jobs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 for cache hit", resp.StatusCode)
	}
}

func TestSubmitJobBudgetDenialMapsTo402(t *testing.T) {
	fx := newRouterFixture(domain.SpendingCaps{UserDailyUSD: 1.00}, &memSpendingStore{user: 5.00})
	server := httptest.NewServer(fx.router.Handler())
	defer server.Close()

	body := `{"user_id":"user-1","image_ref":"https://img.example/menu.jpg","content_hash":"hash-a"}`
	resp, err := http.Post(server.URL+"/v1/jobs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.StatusCode)
	}
	var payload struct {
		Error domain.UserFacingError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Error.Title != "Limit reached" {
		t.Fatalf("error payload = %+v", payload)
	}
}

func TestSubmitJobRateLimitCarriesRetryAfter(t *testing.T) {
	fx := newRouterFixture(domain.SpendingCaps{}, nil)
	fx.repo.countSince = 20
	server := httptest.NewServer(fx.router.Handler())
	defer server.Close()

	body := `{"user_id":"user-1","image_ref":"https://img.example/menu.jpg","content_hash":"hash-a"}`
	resp, err := http.Post(server.URL+"/v1/jobs", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if got := resp.Header.Get("Retry-After"); got != "3600" {
		t.Fatalf("Retry-After = %q, want 3600", got)
	}
}

func TestGetJobNotFound(t *testing.T) {
	fx := newRouterFixture(domain.SpendingCaps{}, nil)
	server := httptest.NewServer(fx.router.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/jobs/missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRetryJobConflictsOnCompletedJob(t *testing.T) {
	fx := newRouterFixture(domain.SpendingCaps{}, nil)
	fx.repo.byID["job-1"] = &domain.ExtractionJob{ID: "job-1", UserID: "user-1", Status: domain.StatusCompleted}
	server := httptest.NewServer(fx.router.Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/v1/jobs/job-1/retry", "application/json", strings.NewReader(`{"user_id":"user-1"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestRetryJobAcceptsFailedJob(t *testing.T) {
	fx := newRouterFixture(domain.SpendingCaps{}, nil)
	fx.repo.byID["job-1"] = &domain.ExtractionJob{
		ID:          "job-1",
		UserID:      "user-1",
		ImageRef:    "https://img.example/menu.jpg",
		ContentHash: "hash-a",
		Status:      domain.StatusFailed,
	}
	server := httptest.NewServer(fx.router.Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/v1/jobs/job-1/retry", "application/json", strings.NewReader(`{"user_id":"user-1"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var job domain.ExtractionJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatal(err)
	}
	if job.RetryCount != 1 || job.ID == "job-1" {
		t.Fatalf("retry job = %+v", job)
	}
}

func TestMetricsOverviewReturnsAggregates(t *testing.T) {
	fx := newRouterFixture(domain.SpendingCaps{}, nil)
	server := httptest.NewServer(fx.router.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/metrics/overview?start=2026-08-01&end=2026-08-25")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var payload struct {
		Overview domain.OverallMetrics `json:"overview"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Overview.Extractions != 10 {
		t.Fatalf("overview = %+v", payload.Overview)
	}
}

func TestMetricsOverviewRejectsBadDates(t *testing.T) {
	fx := newRouterFixture(domain.SpendingCaps{}, nil)
	server := httptest.NewServer(fx.router.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/metrics/overview?start=yesterday")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUserSpendingRoute(t *testing.T) {
	fx := newRouterFixture(domain.SpendingCaps{}, nil)
	server := httptest.NewServer(fx.router.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/users/user-1/spending")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var spending domain.UserSpending
	if err := json.NewDecoder(resp.Body).Decode(&spending); err != nil {
		t.Fatal(err)
	}
	if spending.MonthExtractions != 12 {
		t.Fatalf("spending = %+v", spending)
	}
}

func TestExportMetricsReturnsWorkbook(t *testing.T) {
	fx := newRouterFixture(domain.SpendingCaps{}, nil)
	server := httptest.NewServer(fx.router.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL + "/v1/admin/metrics/export")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Fatalf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("content disposition = %q", cd)
	}
}

func TestReloadCapsWithoutFileUsesDefaults(t *testing.T) {
	fx := newRouterFixture(domain.SpendingCaps{}, nil)
	server := httptest.NewServer(fx.router.Handler())
	defer server.Close()

	resp, err := http.Post(server.URL+"/v1/admin/caps/reload", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var payload struct {
		Status string              `json:"status"`
		Caps   domain.SpendingCaps `json:"caps"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Status != "reloaded" || payload.Caps.UserDailyUSD <= 0 {
		t.Fatalf("payload = %+v", payload)
	}
}
