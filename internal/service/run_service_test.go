package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jantenpas/llm-eval-studio/internal/dto"
	"github.com/jantenpas/llm-eval-studio/internal/eval"
	"github.com/jantenpas/llm-eval-studio/internal/models"
	"github.com/jantenpas/llm-eval-studio/internal/repository"
	"github.com/jantenpas/llm-eval-studio/internal/worker"
	"github.com/jantenpas/llm-eval-studio/pkg/llm"
)

type stubRunRepo struct {
	mu        sync.Mutex
	runs      map[string]models.Run
	rows      []repository.RunListRow
	statusLog []models.RunStatus
	createErr error
	listErr   error
}

func (r *stubRunRepo) Create(ctx context.Context, run *models.Run) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runs == nil {
		r.runs = make(map[string]models.Run)
	}
	r.runs[run.ID] = *run
	return nil
}

func (r *stubRunRepo) UpdateStatus(ctx context.Context, id string, status models.RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	run.Status = status
	r.runs[id] = run
	r.statusLog = append(r.statusLog, status)
	return nil
}

func (r *stubRunRepo) GetByID(ctx context.Context, id string) (models.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return models.Run{}, gorm.ErrRecordNotFound
	}
	return run, nil
}

func (r *stubRunRepo) ListWithStats(ctx context.Context) ([]repository.RunListRow, error) {
	return r.rows, r.listErr
}

func (r *stubRunRepo) status(id string) models.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[id].Status
}

type stubResultRepo struct {
	mu      sync.Mutex
	rows    []models.Result
	calls   int
	failOn  int
	listErr error
}

func (r *stubResultRepo) Create(ctx context.Context, result *models.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failOn > 0 && r.calls == r.failOn {
		return errors.New("insert failed")
	}
	r.rows = append(r.rows, *result)
	return nil
}

func (r *stubResultRepo) ListByRun(ctx context.Context, runID string) ([]models.Result, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	results := make([]models.Result, 0)
	for _, row := range r.rows {
		if row.RunID == runID {
			results = append(results, row)
		}
	}
	return results, nil
}

type stubQueue struct {
	mu   sync.Mutex
	jobs []worker.Job
}

func (q *stubQueue) Enqueue(job worker.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

type scriptedReply struct {
	text string
	err  error
}

type scriptedInvoker struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   []llm.Invocation
}

func (s *scriptedInvoker) Invoke(ctx context.Context, inv llm.Invocation) (llm.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, inv)
	if len(s.replies) == 0 {
		return llm.Completion{}, errors.New("no scripted reply left")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	if reply.err != nil {
		return llm.Completion{}, reply.err
	}
	return llm.Completion{Text: reply.text, LatencyMs: 2}, nil
}

type runServiceFixture struct {
	svc     RunService
	runs    *stubRunRepo
	results *stubResultRepo
	queue   *stubQueue
	events  RunEventsService
	invoker *scriptedInvoker
}

func newRunServiceFixture(t *testing.T, redisClient *redis.Client) *runServiceFixture {
	t.Helper()

	invoker := &scriptedInvoker{}
	pipeline := eval.NewPipeline(invoker, eval.Config{Model: "test-model", ResultsDir: t.TempDir()}, testLogger(), io.Discard)

	fixture := &runServiceFixture{
		runs:    &stubRunRepo{},
		results: &stubResultRepo{},
		queue:   &stubQueue{},
		events:  NewRunEventsService(nil, nil, "", testLogger()),
		invoker: invoker,
	}
	fixture.svc = NewRunService(
		fixture.runs,
		fixture.results,
		pipeline,
		fixture.queue,
		fixture.events,
		redisClient,
		time.Minute,
		validator.New(),
		testLogger(),
	)

	return fixture
}

func exactMatchRequest(name string, cases ...[2]string) dto.RunCreateRequest {
	specs := make([]dto.TestCaseSpec, 0, len(cases))
	for _, pair := range cases {
		specs = append(specs, dto.TestCaseSpec{
			Input:          pair[0],
			ExpectedOutput: pair[1],
			ScoringMethod:  "exact_match",
		})
	}
	return dto.RunCreateRequest{Name: name, TestCases: specs}
}

func TestRunServiceCreateQueuesRun(t *testing.T) {
	fixture := newRunServiceFixture(t, nil)

	payload := exactMatchRequest("math suite", [2]string{"2+2", "4"}, [2]string{"3+3", "6"})
	payload.SystemPrompt = "Answer with only the number."

	resp, err := fixture.svc.Create(context.Background(), payload)
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	require.Equal(t, "math suite", resp.Name)
	require.Equal(t, "running", resp.Status)

	stored, err := fixture.runs.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	require.Equal(t, models.RunStatusRunning, stored.Status)
	require.Equal(t, "test-model", stored.LLMModel)
	require.Equal(t, "Answer with only the number.", stored.SystemPrompt)

	require.Len(t, fixture.queue.jobs, 1)
	job := fixture.queue.jobs[0]
	require.Equal(t, resp.ID, job.RunID)
	require.Equal(t, "math suite", job.RunName)
	require.Equal(t, "Answer with only the number.", job.SystemPrompt)

	var specs []dto.TestCaseSpec
	require.NoError(t, json.Unmarshal(job.Document, &specs))
	require.Len(t, specs, 2)
	require.Equal(t, "2+2", specs[0].Input)
	require.Equal(t, "exact_match", specs[1].ScoringMethod)
}

func TestRunServiceCreateRejectsInvalidPayloads(t *testing.T) {
	fixture := newRunServiceFixture(t, nil)

	payloads := map[string]dto.RunCreateRequest{
		"missing name":       {TestCases: []dto.TestCaseSpec{{Input: "a", ExpectedOutput: "b"}}},
		"no test cases":      {Name: "empty"},
		"missing expected":   {Name: "bad case", TestCases: []dto.TestCaseSpec{{Input: "a"}}},
		"unknown method":     {Name: "bad method", TestCases: []dto.TestCaseSpec{{Input: "a", ExpectedOutput: "b", ScoringMethod: "bogus"}}},
		"empty tag in slice": {Name: "bad tag", TestCases: []dto.TestCaseSpec{{Input: "a", ExpectedOutput: "b", Tags: []string{""}}}},
	}

	for label, payload := range payloads {
		_, err := fixture.svc.Create(context.Background(), payload)
		require.Error(t, err, label)

		var validationErrors validator.ValidationErrors
		require.ErrorAs(t, err, &validationErrors, label)
	}

	require.Empty(t, fixture.queue.jobs)
}

func TestRunServiceProcessRunCompletes(t *testing.T) {
	fixture := newRunServiceFixture(t, nil)
	fixture.invoker.replies = []scriptedReply{{text: "4"}, {text: "5"}}

	resp, err := fixture.svc.Create(context.Background(), exactMatchRequest("arith", [2]string{"2+2", "4"}, [2]string{"3+3", "6"}))
	require.NoError(t, err)

	events, cleanup := fixture.events.Subscribe()
	defer cleanup()

	fixture.svc.ProcessRun(context.Background(), fixture.queue.jobs[0])

	require.Equal(t, models.RunStatusCompleted, fixture.runs.status(resp.ID))
	require.Equal(t, []models.RunStatus{models.RunStatusCompleted}, fixture.runs.statusLog)

	rows, err := fixture.results.ListByRun(context.Background(), resp.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "2+2", rows[0].TestCaseInput)
	require.Equal(t, "4", rows[0].TestCaseExpected)
	require.Equal(t, float64(1), rows[0].Score)
	require.Equal(t, float64(0), rows[1].Score)

	event := waitForEvent(t, events)
	require.Equal(t, resp.ID, event.RunID)
	require.Equal(t, "completed", event.Status)
	require.Equal(t, 2, event.Total)
	require.Equal(t, 1, event.Passed)
}

func TestRunServiceProcessRunRecordsPartialFailure(t *testing.T) {
	fixture := newRunServiceFixture(t, nil)
	fixture.invoker.replies = []scriptedReply{{text: "4"}, {err: errors.New("model unavailable")}}

	resp, err := fixture.svc.Create(context.Background(), exactMatchRequest("flaky", [2]string{"2+2", "4"}, [2]string{"3+3", "6"}))
	require.NoError(t, err)

	events, cleanup := fixture.events.Subscribe()
	defer cleanup()

	fixture.svc.ProcessRun(context.Background(), fixture.queue.jobs[0])

	require.Equal(t, models.RunStatusFailed, fixture.runs.status(resp.ID))

	rows, err := fixture.results.ListByRun(context.Background(), resp.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "2+2", rows[0].TestCaseInput)

	event := waitForEvent(t, events)
	require.Equal(t, "failed", event.Status)
	require.Equal(t, 1, event.Total)
	require.Equal(t, 1, event.Passed)
}

func TestRunServiceProcessRunFailsOnInvalidDocument(t *testing.T) {
	fixture := newRunServiceFixture(t, nil)

	run := models.NewRun("broken", "test-model", "", models.RunStatusRunning)
	require.NoError(t, fixture.runs.Create(context.Background(), &run))

	events, cleanup := fixture.events.Subscribe()
	defer cleanup()

	fixture.svc.ProcessRun(context.Background(), worker.Job{
		RunID:    run.ID,
		RunName:  run.Name,
		Document: []byte(`[{"input":"a"}]`),
	})

	require.Equal(t, models.RunStatusFailed, fixture.runs.status(run.ID))
	require.Empty(t, fixture.invoker.calls)
	require.Empty(t, fixture.results.rows)

	event := waitForEvent(t, events)
	require.Equal(t, "failed", event.Status)
	require.Equal(t, 0, event.Total)
}

func TestRunServiceProcessRunFailsWhenPersistFails(t *testing.T) {
	fixture := newRunServiceFixture(t, nil)
	fixture.invoker.replies = []scriptedReply{{text: "4"}}
	fixture.results.failOn = 1

	resp, err := fixture.svc.Create(context.Background(), exactMatchRequest("persist", [2]string{"2+2", "4"}))
	require.NoError(t, err)

	fixture.svc.ProcessRun(context.Background(), fixture.queue.jobs[0])

	require.Equal(t, models.RunStatusFailed, fixture.runs.status(resp.ID))
	require.Empty(t, fixture.results.rows)
}

func TestRunServiceProcessRunSkipsFinishedRuns(t *testing.T) {
	fixture := newRunServiceFixture(t, nil)

	run := models.NewRun("done", "test-model", "", models.RunStatusCompleted)
	require.NoError(t, fixture.runs.Create(context.Background(), &run))

	fixture.svc.ProcessRun(context.Background(), worker.Job{
		RunID:    run.ID,
		RunName:  run.Name,
		Document: []byte(`[{"input":"a","expected_output":"b"}]`),
	})

	require.Equal(t, models.RunStatusCompleted, fixture.runs.status(run.ID))
	require.Empty(t, fixture.invoker.calls)
	require.Empty(t, fixture.runs.statusLog)
}

func TestRunServiceListCachesSummaries(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	fixture := newRunServiceFixture(t, redisClient)

	avg := 0.75
	fixture.runs.rows = []repository.RunListRow{
		{ID: "r2", Name: "newer", Status: models.RunStatusCompleted, CreatedAt: time.Now().UTC(), ResultCount: 2, AvgScore: &avg},
		{ID: "r1", Name: "older", Status: models.RunStatusFailed, CreatedAt: time.Now().UTC().Add(-time.Hour), ResultCount: 0},
	}

	first, err := fixture.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, "r2", first[0].ID)
	require.NotNil(t, first[0].AvgScore)
	require.Nil(t, first[1].AvgScore)

	// mutate the repo to prove the second read is served from cache
	fixture.runs.rows = nil

	cached, err := fixture.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, cached, 2)
	require.InDelta(t, 0.75, *cached[0].AvgScore, 1e-9)
	require.Nil(t, cached[1].AvgScore)

	_, err = fixture.svc.Create(context.Background(), exactMatchRequest("invalidates", [2]string{"a", "b"}))
	require.NoError(t, err)

	refreshed, err := fixture.svc.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, refreshed)
}

func TestRunServiceGetReturnsDetail(t *testing.T) {
	fixture := newRunServiceFixture(t, nil)

	run := models.NewRun("detail", "test-model", "", models.RunStatusCompleted)
	require.NoError(t, fixture.runs.Create(context.Background(), &run))

	good, err := models.NewResult(run.ID, "case-1", "out-1", 0.9, "close enough", 10)
	require.NoError(t, err)
	good.TestCaseInput = "in-1"
	good.TestCaseExpected = "exp-1"
	weak, err := models.NewResult(run.ID, "case-2", "out-2", 0.5, "missed details", 30)
	require.NoError(t, err)
	weak.TestCaseInput = "in-2"
	weak.TestCaseExpected = "exp-2"
	require.NoError(t, fixture.results.Create(context.Background(), &good))
	require.NoError(t, fixture.results.Create(context.Background(), &weak))

	detail, err := fixture.svc.Get(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, run.ID, detail.ID)
	require.Equal(t, "completed", detail.Status)
	require.Equal(t, 2, detail.Total)
	require.Equal(t, 1, detail.Passed)
	require.Len(t, detail.Results, 2)
	require.Equal(t, "in-1", detail.Results[0].TestCaseInput)
	require.NotNil(t, detail.AvgScore)
	require.InDelta(t, 0.7, *detail.AvgScore, 1e-9)
	require.NotNil(t, detail.AvgLatencyMs)
	require.InDelta(t, 20, *detail.AvgLatencyMs, 1e-9)
}

func TestRunServiceGetUnknownRun(t *testing.T) {
	fixture := newRunServiceFixture(t, nil)

	_, err := fixture.svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrRunNotFound)
}
