package executor

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/devicelab-dev/flowdriver/pkg/core"
	"github.com/devicelab-dev/flowdriver/pkg/flow"
)

// runParallel runs up to Parallelism scenarios at once. Each scenario gets its
// own backend session and FlowDriver; nothing is shared between them except
// the results slice, where each goroutine owns one index.
func (r *Runner) runParallel(ctx context.Context, scenarios []*flow.Scenario, results []*core.ScenarioResult) error {
	var g errgroup.Group
	g.SetLimit(r.config.Parallelism)

	var stopped atomic.Bool
	total := len(scenarios)

	for i, sc := range scenarios {
		if stopped.Load() || ctx.Err() != nil {
			results[i] = skippedResult(sc, "run stopped")
			continue
		}

		i, sc := i, sc
		g.Go(func() error {
			if stopped.Load() || ctx.Err() != nil {
				results[i] = skippedResult(sc, "run stopped")
				return nil
			}

			results[i] = r.runIsolated(ctx, sc, i, total)
			if r.config.StopOnFail && !results[i].Passed() {
				stopped.Store(true)
			}
			return nil
		})
	}

	return g.Wait()
}

// runIsolated opens a session for one scenario and closes it afterwards.
// A session that cannot be opened fails the scenario with a transport error.
func (r *Runner) runIsolated(ctx context.Context, sc *flow.Scenario, idx, total int) *core.ScenarioResult {
	backend, err := r.factory(ctx)
	if err != nil {
		r.scenarioStarted(sc, idx, total)
		res := newScenarioResult(sc)
		setStatus(res, core.ScenarioRunning)
		sr := &ScenarioRunner{config: r.config}
		sr.fail(res, -1, core.ErrBackendTransport.WithMessage("open backend session").WithCause(err))
		r.scenarioEnded(res)
		return res
	}
	defer closeBackend(backend)

	driver := NewFlowDriver(backend, r.config.Policy).WithMetrics(r.config.Metrics)
	return r.runScenario(ctx, driver, sc, idx, total)
}
