// Package eval executes evaluation suites: it loads test-case documents,
// invokes the hosted model for each case, grades the outputs, and records
// the batch as a run with per-case results.
package eval

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jantenpas/llm-eval-studio/internal/grader"
	"github.com/jantenpas/llm-eval-studio/internal/models"
	"github.com/jantenpas/llm-eval-studio/pkg/llm"
)

// PassThreshold is the score at or above which a result counts as passing.
const PassThreshold = 0.7

// DefaultResultsDir receives snapshot files when no directory is configured.
const DefaultResultsDir = "results"

// Request describes one pipeline execution: a raw test-case document plus
// the run configuration.
type Request struct {
	Document     []byte
	RunName      string
	SystemPrompt string
}

// CaseOutcome ties one submitted test case, by original position, to either
// its graded result or the error that removed it from the run. Exactly one
// of Result and Err is set.
type CaseOutcome struct {
	Index    int
	TestCase models.TestCase
	Result   *models.Result
	Err      error
}

// Report is everything one pipeline execution produced: the in-memory run
// with its terminal status, one outcome per submitted case in input order,
// the rendered aggregates, and the snapshot location.
type Report struct {
	Run          models.Run
	Outcomes     []CaseOutcome
	Summary      Summary
	SnapshotPath string
}

// Results returns the successfully graded results in input order.
func (r Report) Results() []models.Result {
	results := make([]models.Result, 0, len(r.Outcomes))
	for _, outcome := range r.Outcomes {
		if outcome.Result != nil {
			results = append(results, *outcome.Result)
		}
	}
	return results
}

// Errored counts the cases that failed before producing a result.
func (r Report) Errored() int {
	errored := 0
	for _, outcome := range r.Outcomes {
		if outcome.Err != nil {
			errored++
		}
	}
	return errored
}

// Config holds the pipeline knobs.
type Config struct {
	Model      string
	ResultsDir string
}

// Pipeline runs evaluation suites serially against a hosted model. The same
// invoker answers test-case prompts and judge prompts.
type Pipeline struct {
	invoker    llm.Invoker
	cfg        Config
	logger     zerolog.Logger
	summaryOut io.Writer
}

// NewPipeline wires a pipeline to its model client. The human-readable
// progress and summary banners go to summaryOut; nil means os.Stdout.
func NewPipeline(invoker llm.Invoker, cfg Config, logger zerolog.Logger, summaryOut io.Writer) *Pipeline {
	if cfg.Model == "" {
		cfg.Model = llm.DefaultModel
	}
	if cfg.ResultsDir == "" {
		cfg.ResultsDir = DefaultResultsDir
	}
	if summaryOut == nil {
		summaryOut = os.Stdout
	}

	return &Pipeline{
		invoker:    invoker,
		cfg:        cfg,
		logger:     logger.With().Str("component", "eval_pipeline").Logger(),
		summaryOut: summaryOut,
	}
}

// Model reports the model identifier the pipeline invokes.
func (p *Pipeline) Model() string {
	return p.cfg.Model
}

// Execute runs the whole suite. Structural problems in the document abort
// before any model call. After that the cases run strictly in input order;
// a failing case is recorded and skipped while the batch continues, and any
// failure degrades the run's terminal status to failed. The report and its
// snapshot always reflect every case that did produce a result.
func (p *Pipeline) Execute(ctx context.Context, req Request) (Report, error) {
	projectID := uuid.NewString()

	cases, err := ParseSuite(req.Document, projectID)
	if err != nil {
		return Report{}, err
	}

	run := models.NewRun(req.RunName, p.cfg.Model, req.SystemPrompt, models.RunStatusRunning)
	run.ProjectID = projectID

	p.logger.Info().
		Str("run_id", run.ID).
		Str("run_name", run.Name).
		Int("test_cases", len(cases)).
		Msg("starting evaluation run")
	fmt.Fprintf(p.summaryOut, "\nStarting run: '%s'  (%d test cases)\n", run.Name, len(cases))

	outcomes := make([]CaseOutcome, 0, len(cases))
	for i, testCase := range cases {
		fmt.Fprintf(p.summaryOut, "  [%d/%d] %s...\n", i+1, len(cases), preview(testCase.Input))

		outcome := CaseOutcome{Index: i, TestCase: testCase}
		result, err := p.runCase(ctx, testCase, run)
		if err != nil {
			outcome.Err = err
			p.logger.Error().
				Err(err).
				Int("case", i+1).
				Int("total", len(cases)).
				Str("run_id", run.ID).
				Msg("test case failed")
			fmt.Fprintf(p.summaryOut, "  ERROR on test case %d: %v\n", i+1, err)
		} else {
			outcome.Result = &result
		}
		outcomes = append(outcomes, outcome)
	}

	report := Report{Run: run, Outcomes: outcomes}

	status := models.RunStatusCompleted
	if report.Errored() > 0 {
		status = models.RunStatusFailed
	}
	if run.Status.CanTransitionTo(status) {
		run.Status = status
		report.Run = run
	}

	report.Summary = Summarize(report)
	RenderSummary(p.summaryOut, report)

	path, err := WriteSnapshot(p.cfg.ResultsDir, report.Run, report.Results())
	if err != nil {
		return Report{}, fmt.Errorf("write snapshot: %w", err)
	}
	report.SnapshotPath = path
	fmt.Fprintf(p.summaryOut, "  Results saved → %s\n\n", path)

	p.logger.Info().
		Str("run_id", run.ID).
		Str("status", string(report.Run.Status)).
		Int("scored", len(report.Results())).
		Int("errored", report.Errored()).
		Msg("evaluation run finished")

	return report, nil
}

// runCase invokes the model once for the case input and grades the output.
// The run's system prompt applies to the test-case call only, never to the
// judge call the grader may make.
func (p *Pipeline) runCase(ctx context.Context, testCase models.TestCase, run models.Run) (models.Result, error) {
	completion, err := p.invoker.Invoke(ctx, llm.Invocation{
		Prompt:       testCase.Input,
		SystemPrompt: run.SystemPrompt,
	})
	if err != nil {
		return models.Result{}, err
	}

	score, err := grader.Grade(ctx, p.invoker, testCase.ScoringMethod, completion.Text, testCase.ExpectedOutput)
	if err != nil {
		return models.Result{}, err
	}

	return models.NewResult(run.ID, testCase.ID, completion.Text, score.Value, score.Reasoning, completion.LatencyMs)
}

func preview(input string) string {
	const max = 55
	runes := []rune(input)
	if len(runes) <= max {
		return input
	}
	return string(runes[:max])
}
