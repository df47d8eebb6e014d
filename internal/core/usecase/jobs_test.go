package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
)

type fakeJobRepo struct {
	byID       map[string]*domain.ExtractionJob
	byHash     map[string]*domain.ExtractionJob
	inserted   []*domain.ExtractionJob
	statusLog  []string
	countSince int
	insertErr  error
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		byID:   map[string]*domain.ExtractionJob{},
		byHash: map[string]*domain.ExtractionJob{},
	}
}

func (f *fakeJobRepo) Insert(_ context.Context, job *domain.ExtractionJob) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	stored := *job
	f.inserted = append(f.inserted, &stored)
	f.byID[job.ID] = &stored
	f.byHash[job.UserID+"/"+job.ContentHash] = &stored
	return nil
}

func (f *fakeJobRepo) UpdateStatus(_ context.Context, jobID string, status domain.JobStatus, errorMessage string) error {
	job, ok := f.byID[jobID]
	if !ok {
		return domain.WrapError(domain.ErrJobNotFound, "fake.update_status", errors.New(jobID))
	}
	job.Status = status
	job.ErrorMessage = errorMessage
	f.statusLog = append(f.statusLog, string(status))
	return nil
}

func (f *fakeJobRepo) MarkCompleted(_ context.Context, job *domain.ExtractionJob) error {
	stored := *job
	f.byID[job.ID] = &stored
	f.statusLog = append(f.statusLog, string(domain.StatusCompleted))
	return nil
}

func (f *fakeJobRepo) FindByHash(_ context.Context, userID, contentHash string) (*domain.ExtractionJob, error) {
	job, ok := f.byHash[userID+"/"+contentHash]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "fake.find_by_hash", errors.New(contentHash))
	}
	return job, nil
}

func (f *fakeJobRepo) FindByID(_ context.Context, jobID string) (*domain.ExtractionJob, error) {
	job, ok := f.byID[jobID]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "fake.find_by_id", errors.New(jobID))
	}
	return job, nil
}

func (f *fakeJobRepo) CountSince(_ context.Context, _ string, _ time.Time) (int, error) {
	return f.countSince, nil
}

type fakePlanStore struct {
	limit int
}

func (f *fakePlanStore) MonthlyJobLimit(_ context.Context, _ string) (int, error) {
	return f.limit, nil
}

type fakeQueue struct {
	published  []string
	publishErr error
}

func (f *fakeQueue) PublishJobQueued(_ context.Context, jobID string) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, jobID)
	return nil
}

func (f *fakeQueue) SubscribeJobQueued(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}

func newTestJobService(repo *fakeJobRepo, plans *fakePlanStore, queue *fakeQueue) *JobService {
	monitor := NewCostMonitor(&fakeSpendingStore{}, domain.SpendingCaps{}, discardLogger())
	return NewJobService(repo, plans, queue, monitor, JobServiceConfig{}, discardLogger())
}

func sampleResult() *domain.ExtractionResult {
	price := 12.5
	return &domain.ExtractionResult{
		CurrencyCode: "USD",
		Categories: []domain.MenuCategory{
			{
				Name:       "Mains",
				Confidence: 0.95,
				Items: []domain.MenuItem{
					{Name: "Burger", Price: &price, Confidence: 0.92},
				},
			},
		},
	}
}

func TestSubmitJobQueuesAndPublishes(t *testing.T) {
	repo := newFakeJobRepo()
	queue := &fakeQueue{}
	svc := newTestJobService(repo, &fakePlanStore{limit: -1}, queue)

	result, err := svc.SubmitJob(context.Background(), "user-1", "https://img.example/menu.jpg", "hash-a", ports.SubmitOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cached {
		t.Fatal("first submission must not be a cache hit")
	}
	if result.Job.Status != domain.StatusQueued {
		t.Fatalf("status = %q, want queued", result.Job.Status)
	}
	if result.Job.SchemaVersion != domain.SchemaV2 {
		t.Fatalf("schema version = %q, want default v2", result.Job.SchemaVersion)
	}
	if len(queue.published) != 1 || queue.published[0] != result.Job.ID {
		t.Fatalf("published = %v, want the new job id", queue.published)
	}
}

func TestSubmitJobServesCompletedResultFromCache(t *testing.T) {
	repo := newFakeJobRepo()
	queue := &fakeQueue{}
	svc := newTestJobService(repo, &fakePlanStore{limit: -1}, queue)

	completed := &domain.ExtractionJob{
		ID:          "job-1",
		UserID:      "user-1",
		ContentHash: "hash-a",
		Status:      domain.StatusCompleted,
		Result:      sampleResult(),
	}
	repo.byID[completed.ID] = completed
	repo.byHash["user-1/hash-a"] = completed

	result, err := svc.SubmitJob(context.Background(), "user-1", "https://img.example/menu.jpg", "hash-a", ports.SubmitOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Cached {
		t.Fatal("usable completed job must be served from cache")
	}
	if result.Job.ID != "job-1" {
		t.Fatalf("job id = %q, want job-1", result.Job.ID)
	}
	if len(queue.published) != 0 {
		t.Fatal("cache hit must not publish work")
	}
}

func TestSubmitJobReturnsInFlightDuplicate(t *testing.T) {
	repo := newFakeJobRepo()
	queue := &fakeQueue{}
	svc := newTestJobService(repo, &fakePlanStore{limit: -1}, queue)

	inflight := &domain.ExtractionJob{
		ID:          "job-1",
		UserID:      "user-1",
		ContentHash: "hash-a",
		Status:      domain.StatusProcessing,
	}
	repo.byID[inflight.ID] = inflight
	repo.byHash["user-1/hash-a"] = inflight

	result, err := svc.SubmitJob(context.Background(), "user-1", "https://img.example/menu.jpg", "hash-a", ports.SubmitOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cached {
		t.Fatal("an in-flight duplicate is not a cache hit")
	}
	if result.Job.ID != "job-1" {
		t.Fatalf("job id = %q, want the in-flight job", result.Job.ID)
	}
	if len(queue.published) != 0 {
		t.Fatal("duplicate must not publish new work")
	}
}

func TestSubmitJobForceBypassesCache(t *testing.T) {
	repo := newFakeJobRepo()
	queue := &fakeQueue{}
	svc := newTestJobService(repo, &fakePlanStore{limit: -1}, queue)

	completed := &domain.ExtractionJob{
		ID:          "job-1",
		UserID:      "user-1",
		ContentHash: "hash-a",
		Status:      domain.StatusCompleted,
		Result:      sampleResult(),
	}
	repo.byID[completed.ID] = completed
	repo.byHash["user-1/hash-a"] = completed

	result, err := svc.SubmitJob(context.Background(), "user-1", "https://img.example/menu.jpg", "hash-a", ports.SubmitOptions{Force: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cached || result.Job.ID == "job-1" {
		t.Fatal("force must create a fresh job")
	}
	if len(queue.published) != 1 {
		t.Fatal("forced submission must publish work")
	}
}

func TestSubmitJobReRunsStaleCompletedEntry(t *testing.T) {
	repo := newFakeJobRepo()
	queue := &fakeQueue{}
	svc := newTestJobService(repo, &fakePlanStore{limit: -1}, queue)

	stale := &domain.ExtractionJob{
		ID:          "job-1",
		UserID:      "user-1",
		ContentHash: "hash-a",
		Status:      domain.StatusCompleted,
		Result:      &domain.ExtractionResult{CurrencyCode: "USD"},
	}
	repo.byID[stale.ID] = stale
	repo.byHash["user-1/hash-a"] = stale

	result, err := svc.SubmitJob(context.Background(), "user-1", "https://img.example/menu.jpg", "hash-a", ports.SubmitOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cached {
		t.Fatal("a completed job without categories must not be served from cache")
	}
	if result.Job.ID != "job-1" {
		t.Fatalf("job ID = %s, want the stale row requeued, not a duplicate", result.Job.ID)
	}
	if result.Job.Status != domain.StatusQueued {
		t.Fatalf("status = %s, want queued", result.Job.Status)
	}
	if len(repo.inserted) != 0 {
		t.Fatal("stale re-run must not insert a new row")
	}
	if len(queue.published) != 1 || queue.published[0] != "job-1" {
		t.Fatalf("published = %v, want the stale job id", queue.published)
	}
}

func TestMarkJobCompletedDowngradesMalformedResult(t *testing.T) {
	repo := newFakeJobRepo()
	svc := newTestJobService(repo, &fakePlanStore{limit: -1}, &fakeQueue{})

	job := &domain.ExtractionJob{
		ID:     "job-1",
		UserID: "user-1",
		Status: domain.StatusProcessing,
		Result: &domain.ExtractionResult{CurrencyCode: "EUR"},
	}
	repo.byID[job.ID] = job

	if err := svc.MarkJobCompleted(context.Background(), job); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != domain.StatusProcessing {
		t.Fatalf("status = %s, want processing", job.Status)
	}
	if len(repo.statusLog) != 1 || repo.statusLog[0] != string(domain.StatusProcessing) {
		t.Fatalf("statusLog = %v, want a single processing write", repo.statusLog)
	}
}

func TestSubmitJobEnforcesMonthlyQuota(t *testing.T) {
	repo := newFakeJobRepo()
	repo.countSince = 100
	svc := newTestJobService(repo, &fakePlanStore{limit: 100}, &fakeQueue{})

	_, err := svc.SubmitJob(context.Background(), "user-1", "https://img.example/menu.jpg", "hash-a", ports.SubmitOptions{})
	if !domain.IsKind(err, domain.ErrQuotaExceeded) {
		t.Fatalf("error = %v, want quota exceeded", err)
	}
}

func TestSubmitJobEnforcesHourlyRateLimit(t *testing.T) {
	repo := newFakeJobRepo()
	repo.countSince = defaultHourlyJobLimit
	svc := newTestJobService(repo, &fakePlanStore{limit: -1}, &fakeQueue{})

	_, err := svc.SubmitJob(context.Background(), "user-1", "https://img.example/menu.jpg", "hash-a", ports.SubmitOptions{})
	if !domain.IsKind(err, domain.ErrRateLimited) {
		t.Fatalf("error = %v, want rate limited", err)
	}
}

func TestSubmitJobRejectsOverBudget(t *testing.T) {
	repo := newFakeJobRepo()
	monitor := NewCostMonitor(&fakeSpendingStore{userSpend: 10}, domain.SpendingCaps{UserDailyUSD: 1}, discardLogger())
	svc := NewJobService(repo, &fakePlanStore{limit: -1}, &fakeQueue{}, monitor, JobServiceConfig{}, discardLogger())

	_, err := svc.SubmitJob(context.Background(), "user-1", "https://img.example/menu.jpg", "hash-a", ports.SubmitOptions{})
	if !domain.IsKind(err, domain.ErrBudgetExceeded) {
		t.Fatalf("error = %v, want budget exceeded", err)
	}
}

func TestSubmitJobRejectsMissingInput(t *testing.T) {
	svc := newTestJobService(newFakeJobRepo(), &fakePlanStore{limit: -1}, &fakeQueue{})

	_, err := svc.SubmitJob(context.Background(), "user-1", "", "hash-a", ports.SubmitOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("error = %v, want invalid input", err)
	}
}

func TestRetryJobCreatesFreshRowWithAdvancedCounter(t *testing.T) {
	repo := newFakeJobRepo()
	queue := &fakeQueue{}
	svc := newTestJobService(repo, &fakePlanStore{limit: -1}, queue)

	failed := &domain.ExtractionJob{
		ID:          "job-1",
		UserID:      "user-1",
		ImageRef:    "https://img.example/menu.jpg",
		ContentHash: "hash-a",
		Status:      domain.StatusFailed,
		RetryCount:  1,
	}
	repo.byID[failed.ID] = failed

	retry, err := svc.RetryJob(context.Background(), "job-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if retry.ID == "job-1" {
		t.Fatal("retry must be a fresh row")
	}
	if retry.RetryCount != 2 {
		t.Fatalf("retry count = %d, want 2", retry.RetryCount)
	}
	if retry.Status != domain.StatusQueued {
		t.Fatalf("status = %q, want queued", retry.Status)
	}
	if len(queue.published) != 1 || queue.published[0] != retry.ID {
		t.Fatalf("published = %v, want the retry job id", queue.published)
	}
}

func TestRetryJobEnforcesCeiling(t *testing.T) {
	repo := newFakeJobRepo()
	svc := newTestJobService(repo, &fakePlanStore{limit: -1}, &fakeQueue{})

	failed := &domain.ExtractionJob{
		ID:         "job-1",
		UserID:     "user-1",
		Status:     domain.StatusFailed,
		RetryCount: domain.MaxJobRetries,
	}
	repo.byID[failed.ID] = failed

	_, err := svc.RetryJob(context.Background(), "job-1", "user-1")
	if !domain.IsKind(err, domain.ErrMaxRetriesExceeded) {
		t.Fatalf("error = %v, want max retries exceeded", err)
	}
}

func TestRetryJobRejectsNonFailedStatus(t *testing.T) {
	repo := newFakeJobRepo()
	svc := newTestJobService(repo, &fakePlanStore{limit: -1}, &fakeQueue{})

	repo.byID["job-1"] = &domain.ExtractionJob{ID: "job-1", UserID: "user-1", Status: domain.StatusCompleted}

	_, err := svc.RetryJob(context.Background(), "job-1", "user-1")
	if !domain.IsKind(err, domain.ErrInvalidStatus) {
		t.Fatalf("error = %v, want invalid status", err)
	}
}

func TestRetryJobHidesForeignJobs(t *testing.T) {
	repo := newFakeJobRepo()
	svc := newTestJobService(repo, &fakePlanStore{limit: -1}, &fakeQueue{})

	repo.byID["job-1"] = &domain.ExtractionJob{ID: "job-1", UserID: "user-2", Status: domain.StatusFailed}

	_, err := svc.RetryJob(context.Background(), "job-1", "user-1")
	if !domain.IsKind(err, domain.ErrJobNotFound) {
		t.Fatalf("error = %v, want job not found", err)
	}
}

func TestUpdateJobStatusRejectsBackwardTransition(t *testing.T) {
	repo := newFakeJobRepo()
	svc := newTestJobService(repo, &fakePlanStore{limit: -1}, &fakeQueue{})

	repo.byID["job-1"] = &domain.ExtractionJob{ID: "job-1", Status: domain.StatusCompleted}

	err := svc.UpdateJobStatus(context.Background(), "job-1", domain.StatusProcessing, "")
	if !domain.IsKind(err, domain.ErrInvalidStatus) {
		t.Fatalf("error = %v, want invalid status", err)
	}
}
