package eval

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Summary aggregates a report for human-readable output. Averages cover the
// graded results only; errored cases never contribute.
type Summary struct {
	Total        int
	Passed       int
	Errored      int
	AvgScore     float64
	AvgLatencyMs float64
}

// Summarize computes pass counts and averages over the produced results.
// With no results the averages stay zero.
func Summarize(report Report) Summary {
	results := report.Results()

	summary := Summary{
		Total:   len(results),
		Errored: report.Errored(),
	}
	if len(results) == 0 {
		return summary
	}

	var scoreSum float64
	var latencySum int64
	for _, result := range results {
		if result.Score >= PassThreshold {
			summary.Passed++
		}
		scoreSum += result.Score
		latencySum += result.LatencyMs
	}

	summary.AvgScore = scoreSum / float64(len(results))
	summary.AvgLatencyMs = float64(latencySum) / float64(len(results))

	return summary
}

// RenderSummary writes the result banner: one pass/fail line per graded
// result in input order, then the aggregate block.
func RenderSummary(w io.Writer, report Report) {
	rule := strings.Repeat("=", 55)

	fmt.Fprintf(w, "\n%s\n", rule)
	fmt.Fprintf(w, "  EVAL RESULTS — %s UTC\n", time.Now().UTC().Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w, rule)

	for _, outcome := range report.Outcomes {
		if outcome.Result == nil {
			continue
		}

		status := "✗ FAIL"
		if outcome.Result.Score >= PassThreshold {
			status = "✓ PASS"
		}

		fmt.Fprintf(w, "\n%s  [%.2f]  %s...\n", status, outcome.Result.Score, preview(outcome.TestCase.Input))
		fmt.Fprintf(w, "         %s\n", outcome.Result.Reasoning)
	}

	summary := report.Summary
	fmt.Fprintf(w, "\n%s\n", strings.Repeat("-", 55))
	fmt.Fprintf(w, "  Passed:      %d/%d\n", summary.Passed, summary.Total)
	fmt.Fprintf(w, "  Avg Score:   %.2f\n", summary.AvgScore)
	fmt.Fprintf(w, "  Avg Latency: %.0fms\n", summary.AvgLatencyMs)
	fmt.Fprintf(w, "%s\n\n", rule)
}
