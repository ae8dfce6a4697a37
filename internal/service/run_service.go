package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/jantenpas/llm-eval-studio/internal/dto"
	"github.com/jantenpas/llm-eval-studio/internal/eval"
	"github.com/jantenpas/llm-eval-studio/internal/models"
	"github.com/jantenpas/llm-eval-studio/internal/observability"
	"github.com/jantenpas/llm-eval-studio/internal/repository"
	"github.com/jantenpas/llm-eval-studio/internal/worker"
)

// ErrRunNotFound marks lookups for run ids that do not exist.
var ErrRunNotFound = errors.New("run not found")

const runListCacheKey = "runs:index"

// RunQueue enqueues accepted runs for background execution.
type RunQueue interface {
	Enqueue(job worker.Job)
}

// RunService accepts, lists and inspects evaluation runs, and executes
// queued runs end to end.
type RunService interface {
	Create(ctx context.Context, payload dto.RunCreateRequest) (dto.RunCreatedResponse, error)
	List(ctx context.Context) ([]dto.RunSummaryResponse, error)
	Get(ctx context.Context, id string) (dto.RunDetailResponse, error)
	ProcessRun(ctx context.Context, job worker.Job)
}

type runService struct {
	runs      repository.RunRepository
	results   repository.ResultRepository
	pipeline  *eval.Pipeline
	queue     RunQueue
	events    RunEventsService
	redis     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewRunService constructs the run service. redisClient may be nil, which
// disables the run list cache.
func NewRunService(
	runs repository.RunRepository,
	results repository.ResultRepository,
	pipeline *eval.Pipeline,
	queue RunQueue,
	events RunEventsService,
	redisClient *redis.Client,
	cacheTTL time.Duration,
	validate *validator.Validate,
	logger zerolog.Logger,
) RunService {
	return &runService{
		runs:      runs,
		results:   results,
		pipeline:  pipeline,
		queue:     queue,
		events:    events,
		redis:     redisClient,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger.With().Str("component", "run_service").Logger(),
		tracer:    otel.Tracer("github.com/jantenpas/llm-eval-studio/internal/service/run"),
	}
}

// Create validates the payload, persists the run in running status and
// enqueues it for background execution. The response is an acknowledgement;
// results arrive once a worker finishes the run.
func (s *runService) Create(ctx context.Context, payload dto.RunCreateRequest) (dto.RunCreatedResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RunCreatedResponse{}, err
	}

	document, err := json.Marshal(payload.TestCases)
	if err != nil {
		return dto.RunCreatedResponse{}, err
	}

	attrs := []attribute.KeyValue{
		attribute.String("run.name", payload.Name),
		attribute.Int("run.test_cases", len(payload.TestCases)),
	}
	spanCtx, span := s.tracer.Start(ctx, "runs.create", trace.WithAttributes(attrs...))
	defer span.End()

	run := models.NewRun(payload.Name, s.pipeline.Model(), payload.SystemPrompt, models.RunStatusRunning)
	if err := s.runs.Create(spanCtx, &run); err != nil {
		span.RecordError(err)
		return dto.RunCreatedResponse{}, err
	}

	s.invalidateListCache(spanCtx)
	s.queue.Enqueue(worker.Job{
		RunID:        run.ID,
		RunName:      run.Name,
		SystemPrompt: run.SystemPrompt,
		Document:     document,
	})

	s.logger.Info().
		Str("run_id", run.ID).
		Int("test_cases", len(payload.TestCases)).
		Msg("run accepted")

	return dto.RunCreatedResponse{
		ID:     run.ID,
		Name:   run.Name,
		Status: string(run.Status),
	}, nil
}

// List returns every run newest first with its result aggregates, serving
// from the redis cache when a fresh copy exists.
func (s *runService) List(ctx context.Context) ([]dto.RunSummaryResponse, error) {
	if summaries, ok := s.cachedList(ctx); ok {
		return summaries, nil
	}

	rows, err := s.runs.ListWithStats(ctx)
	if err != nil {
		return nil, err
	}

	summaries := dto.NewRunSummaryResponseSlice(rows)
	s.storeListCache(ctx, summaries)

	return summaries, nil
}

// Get returns one run with its results in insertion order.
func (s *runService) Get(ctx context.Context, id string) (dto.RunDetailResponse, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.RunDetailResponse{}, ErrRunNotFound
		}
		return dto.RunDetailResponse{}, err
	}

	results, err := s.results.ListByRun(ctx, id)
	if err != nil {
		return dto.RunDetailResponse{}, err
	}

	return dto.NewRunDetailResponse(run, results, eval.PassThreshold), nil
}

// ProcessRun executes one queued run to its terminal status. The pipeline
// report decides that status: completed only when every case produced a
// result, failed when the pipeline aborted or any case errored. Results that
// were graded are persisted even when the run fails.
func (s *runService) ProcessRun(ctx context.Context, job worker.Job) {
	spanCtx, span := s.tracer.Start(ctx, "runs.process", trace.WithAttributes(
		attribute.String("run.id", job.RunID),
	))
	defer span.End()

	logger := s.logger.With().Str("run_id", job.RunID).Logger()

	run, err := s.runs.GetByID(spanCtx, job.RunID)
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("failed to load queued run")
		return
	}
	if run.Status.Terminal() {
		logger.Warn().Str("status", string(run.Status)).Msg("run already finished, job dropped")
		return
	}

	report, err := s.pipeline.Execute(spanCtx, eval.Request{
		Document:     job.Document,
		RunName:      job.RunName,
		SystemPrompt: job.SystemPrompt,
	})
	if err != nil {
		span.RecordError(err)
		logger.Error().Err(err).Msg("evaluation pipeline failed")
		s.finishRun(spanCtx, job.RunID, job.RunName, models.RunStatusFailed, 0, 0)
		return
	}

	persisted := 0
	for _, outcome := range report.Outcomes {
		if outcome.Result == nil {
			continue
		}

		row := *outcome.Result
		row.RunID = job.RunID
		row.TestCaseInput = outcome.TestCase.Input
		row.TestCaseExpected = outcome.TestCase.ExpectedOutput
		if err := s.results.Create(spanCtx, &row); err != nil {
			span.RecordError(err)
			logger.Error().Err(err).Str("result_id", row.ID).Msg("failed to persist result")
			s.finishRun(spanCtx, job.RunID, job.RunName, models.RunStatusFailed, report.Summary.Total, report.Summary.Passed)
			return
		}
		persisted++
	}

	observability.EvalCases().WithLabelValues("scored").Add(float64(persisted))
	if errored := report.Errored(); errored > 0 {
		observability.EvalCases().WithLabelValues("errored").Add(float64(errored))
	}

	s.finishRun(spanCtx, job.RunID, job.RunName, report.Run.Status, report.Summary.Total, report.Summary.Passed)
}

// finishRun moves the stored run to its terminal status, refreshes caches
// and announces the outcome. Transitions the state machine forbids are
// skipped so a replayed job cannot resurrect a finished run.
func (s *runService) finishRun(ctx context.Context, runID, runName string, status models.RunStatus, total, passed int) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		s.logger.Error().Err(err).Str("run_id", runID).Msg("failed to load run for status update")
		return
	}

	if !run.Status.CanTransitionTo(status) {
		s.logger.Warn().
			Str("run_id", runID).
			Str("from", string(run.Status)).
			Str("to", string(status)).
			Msg("run status transition skipped")
		return
	}

	if err := s.runs.UpdateStatus(ctx, runID, status); err != nil {
		s.logger.Error().Err(err).Str("run_id", runID).Msg("failed to update run status")
		return
	}

	s.invalidateListCache(ctx)
	observability.EvalRuns().WithLabelValues(string(status)).Inc()
	s.events.Publish(ctx, dto.NewRunEvent(runID, runName, status, total, passed))

	s.logger.Info().
		Str("run_id", runID).
		Str("status", string(status)).
		Int("total", total).
		Int("passed", passed).
		Msg("run finished")
}

func (s *runService) cachedList(ctx context.Context) ([]dto.RunSummaryResponse, bool) {
	if s.redis == nil {
		return nil, false
	}

	payload, err := s.redis.Get(ctx, runListCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("run list cache read failed")
		}
		return nil, false
	}

	var summaries []dto.RunSummaryResponse
	if err := json.Unmarshal(payload, &summaries); err != nil {
		s.logger.Warn().Err(err).Msg("run list cache entry invalid")
		return nil, false
	}

	return summaries, true
}

func (s *runService) storeListCache(ctx context.Context, summaries []dto.RunSummaryResponse) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return
	}

	payload, err := json.Marshal(summaries)
	if err != nil {
		return
	}

	if err := s.redis.Set(ctx, runListCacheKey, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("run list cache write failed")
	}
}

func (s *runService) invalidateListCache(ctx context.Context) {
	if s.redis == nil {
		return
	}

	if err := s.redis.Del(ctx, runListCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("run list cache invalidation failed")
	}
}
