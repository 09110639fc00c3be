// Package executor drives scenarios against an automation backend.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/devicelab-dev/flowdriver/pkg/core"
	"github.com/devicelab-dev/flowdriver/pkg/flow"
	"github.com/devicelab-dev/flowdriver/pkg/logger"
	"github.com/devicelab-dev/flowdriver/pkg/metrics"
)

// BackendFactory opens a new backend session.
type BackendFactory func(ctx context.Context) (core.Backend, error)

// RunnerConfig configures the test runner.
type RunnerConfig struct {
	Policy      core.WaitPolicy // Default wait timeout and poll interval
	DataDir     string          // Base directory for relative data files
	Parallelism int             // Max concurrent scenarios (0 = sequential)
	StopOnFail  bool            // Skip remaining scenarios after the first failure

	Metrics *metrics.Recorder // Optional

	// Live progress callbacks. With Parallelism > 0 they are called
	// from several goroutines.
	OnScenarioStart func(idx, total int, name, file string)
	OnStepComplete  func(scenario string, step core.StepResult)
	OnScenarioEnd   func(result *core.ScenarioResult)
}

// RunResult contains the outcome of a test run.
type RunResult struct {
	RunID     string
	StartTime time.Time
	Duration  time.Duration // Wall clock

	Total   int
	Passed  int
	Failed  int
	Skipped int // Never started: stopped or cancelled

	Scenarios []*core.ScenarioResult
}

// Success reports whether every scenario passed.
func (r *RunResult) Success() bool {
	return r.Total > 0 && r.Passed == r.Total
}

// Runner orchestrates scenario execution.
type Runner struct {
	config  RunnerConfig
	backend core.Backend
	factory BackendFactory
}

// New creates a Runner that runs every scenario on one backend session.
// The caller owns the backend.
func New(backend core.Backend, cfg RunnerConfig) *Runner {
	return &Runner{config: cfg, backend: backend}
}

// NewWithFactory creates a Runner that opens backend sessions on demand:
// one per scenario when running in parallel, one for the run otherwise.
func NewWithFactory(factory BackendFactory, cfg RunnerConfig) *Runner {
	return &Runner{config: cfg, factory: factory}
}

// Run executes all scenarios. Scenario failures are reported in the result;
// the error is only for failures to run at all.
func (r *Runner) Run(ctx context.Context, scenarios []*flow.Scenario) (*RunResult, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios to run")
	}
	if r.config.Parallelism > 0 && r.factory == nil {
		return nil, fmt.Errorf("parallel runs need a backend factory: each scenario opens its own session")
	}

	start := time.Now()
	runID := uuid.NewString()
	logger.Info("run %s: %d scenarios, parallelism %d", runID, len(scenarios), r.config.Parallelism)

	results := make([]*core.ScenarioResult, len(scenarios))
	var err error
	if r.config.Parallelism > 0 {
		err = r.runParallel(ctx, scenarios, results)
	} else {
		err = r.runSequential(ctx, scenarios, results)
	}
	if err != nil {
		return nil, err
	}

	result := buildRunResult(results)
	result.RunID = runID
	result.StartTime = start
	result.Duration = time.Since(start)
	return result, nil
}

func (r *Runner) runSequential(ctx context.Context, scenarios []*flow.Scenario, results []*core.ScenarioResult) error {
	backend := r.backend
	if backend == nil {
		if r.factory == nil {
			return fmt.Errorf("runner has no backend")
		}
		b, err := r.factory(ctx)
		if err != nil {
			return fmt.Errorf("open backend: %w", err)
		}
		defer closeBackend(b)
		backend = b
	}

	driver := NewFlowDriver(backend, r.config.Policy).WithMetrics(r.config.Metrics)
	stopped := false
	for i, sc := range scenarios {
		if stopped || ctx.Err() != nil {
			results[i] = skippedResult(sc, "run stopped")
			continue
		}
		results[i] = r.runScenario(ctx, driver, sc, i, len(scenarios))
		if r.config.StopOnFail && !results[i].Passed() {
			stopped = true
		}
	}
	return nil
}

// runScenario wraps one scenario run with the start/end callbacks.
func (r *Runner) runScenario(ctx context.Context, driver *FlowDriver, sc *flow.Scenario, idx, total int) *core.ScenarioResult {
	r.scenarioStarted(sc, idx, total)
	res := NewScenarioRunner(driver, r.config).Run(ctx, sc)
	r.scenarioEnded(res)
	return res
}

func (r *Runner) scenarioStarted(sc *flow.Scenario, idx, total int) {
	if r.config.OnScenarioStart != nil {
		r.config.OnScenarioStart(idx, total, sc.Name(), sc.SourcePath)
	}
}

func (r *Runner) scenarioEnded(res *core.ScenarioResult) {
	if r.config.OnScenarioEnd != nil {
		r.config.OnScenarioEnd(res)
	}
}

// skippedResult describes a scenario that never started.
func skippedResult(sc *flow.Scenario, reason string) *core.ScenarioResult {
	res := newScenarioResult(sc)
	for i := range res.Steps {
		res.Steps[i].Status = core.StatusSkipped
	}
	res.Error = reason
	return res
}

// buildRunResult aggregates scenario results into a run result.
func buildRunResult(results []*core.ScenarioResult) *RunResult {
	rr := &RunResult{
		Total:     len(results),
		Scenarios: results,
	}
	for _, res := range results {
		switch res.Status {
		case core.ScenarioPassed:
			rr.Passed++
		case core.ScenarioFailed:
			rr.Failed++
		default:
			rr.Skipped++
		}
	}
	return rr
}

func closeBackend(b core.Backend) {
	if c, ok := b.(core.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("close backend: %v", err)
		}
	}
}
