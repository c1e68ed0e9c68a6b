// Package metrics contains all application-logic metrics
package metrics

import "github.com/VictoriaMetrics/metrics"

var (
	roundsTotal        = metrics.NewCounter("solver_rounds_total")
	roundsNoSolution   = metrics.NewCounter("solver_rounds_no_solution_total")
	solverCallFailures = metrics.NewCounter("solver_call_failures_total")
	conversionFailures = metrics.NewCounter("settlement_conversion_failures_total")
	accessListFailures = metrics.NewCounter("access_list_failures_total")
	settleSubmissions  = metrics.NewCounter("settle_submissions_total")
	solveFailures      = metrics.NewCounter("solve_failures_total")
	settleFailures     = metrics.NewCounter("settle_failures_total")

	solveDuration  = metrics.NewSummary("solve_duration_milliseconds")
	settleDuration = metrics.NewSummary("settle_duration_milliseconds")
)

func IncRoundsTotal() {
	roundsTotal.Inc()
}

func IncRoundsNoSolution() {
	roundsNoSolution.Inc()
}

func IncSolverCallFailure() {
	solverCallFailures.Inc()
}

func IncConversionFailure() {
	conversionFailures.Inc()
}

func IncAccessListFailure() {
	accessListFailures.Inc()
}

func IncSettleSubmissions() {
	settleSubmissions.Inc()
}

func IncSolveFailure() {
	solveFailures.Inc()
}

func IncSettleFailure() {
	settleFailures.Inc()
}

func RecordSolveDuration(duration int64) {
	solveDuration.Update(float64(duration))
}

func RecordSettleDuration(duration int64) {
	settleDuration.Update(float64(duration))
}
