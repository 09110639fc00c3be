package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/flowdriver/pkg/core"
	"github.com/devicelab-dev/flowdriver/pkg/dataset"
	"github.com/devicelab-dev/flowdriver/pkg/flow"
	"github.com/devicelab-dev/flowdriver/pkg/logger"
	"github.com/devicelab-dev/flowdriver/pkg/tracing"
)

// ScenarioRunner executes the steps of one scenario strictly in order and
// stops at the first failure. It holds no state between runs.
type ScenarioRunner struct {
	driver *FlowDriver
	config RunnerConfig
}

// NewScenarioRunner creates a ScenarioRunner.
func NewScenarioRunner(driver *FlowDriver, cfg RunnerConfig) *ScenarioRunner {
	return &ScenarioRunner{driver: driver, config: cfg}
}

// Run executes sc and returns its result. It never returns nil.
func (sr *ScenarioRunner) Run(ctx context.Context, sc *flow.Scenario) *core.ScenarioResult {
	res := newScenarioResult(sc)

	ctx, span := tracing.StartSpan(ctx, "scenario "+res.Name)
	span.WithAttributes(map[string]string{
		"scenario.file": sc.SourcePath,
		"scenario.tags": strings.Join(sc.Config.Tags, ","),
	})
	log := logger.WithFields(map[string]interface{}{"scenario": res.Name})

	setStatus(res, core.ScenarioRunning)
	log.Info("scenario started")

	steps, err := sr.prepare(sc)
	if err != nil {
		idx := -1
		var se *StepError
		if errors.As(err, &se) {
			idx = se.Index
			res.Steps[idx].Status = core.StatusFailed
			res.Steps[idx].Category = core.CategoryOf(err)
			res.Steps[idx].Error = err.Error()
		}
		sr.fail(res, idx, err)
	} else {
		for i, step := range steps {
			if ctx.Err() != nil {
				sr.fail(res, -1, fmt.Errorf("scenario cancelled before step %d: %w", i+1, ctx.Err()))
				break
			}
			if err := sr.runStep(ctx, sc, i, step, &res.Steps[i]); err != nil {
				sr.fail(res, i, err)
				break
			}
		}
	}

	if res.Status == core.ScenarioRunning {
		setStatus(res, core.ScenarioPassed)
	}
	res.Duration = time.Since(res.StartTime)

	sr.config.Metrics.ObserveScenario(res.Name, res.Status.String(), res.Duration)
	tracing.EndSpan(span, res.Cause)

	if res.Passed() {
		log.WithField("duration", res.Duration).Info("scenario passed")
	} else {
		log.WithField("duration", res.Duration).Errorf("scenario failed: %s", res.Error)
	}
	return res
}

func newScenarioResult(sc *flow.Scenario) *core.ScenarioResult {
	res := &core.ScenarioResult{
		Name:       sc.Name(),
		FilePath:   sc.SourcePath,
		Tags:       sc.Config.Tags,
		Status:     core.ScenarioNotStarted,
		StartTime:  time.Now(),
		FailedStep: -1,
		Steps:      make([]core.StepResult, len(sc.Steps)),
	}
	for i, step := range sc.Steps {
		res.Steps[i] = core.StepResult{
			Step:    step,
			Index:   i,
			Action:  string(step.Action),
			Locator: locatorOf(step),
			Status:  core.StatusPending,
		}
	}
	return res
}

// prepare loads the form field map and resolves ${Field} references in every
// step, so that an undefined field fails the scenario before any UI action.
func (sr *ScenarioRunner) prepare(sc *flow.Scenario) ([]flow.Step, error) {
	fields, err := sr.loadFields(sc)
	if err != nil {
		return nil, err
	}

	steps := make([]flow.Step, len(sc.Steps))
	for i, step := range sc.Steps {
		resolved, err := step.Resolve(fields)
		if err != nil {
			var mfe *flow.MissingFieldError
			if errors.As(err, &mfe) {
				err = core.ErrMissingField.
					WithMessage(fmt.Sprintf("undefined form fields %s", strings.Join(mfe.Fields, ", "))).
					WithDetails(map[string]interface{}{"fields": mfe.Fields}).
					WithCause(err)
			}
			return nil, &StepError{Index: i, Action: string(step.Action), Locator: locatorOf(step), Err: err}
		}
		steps[i] = resolved
	}
	return steps, nil
}

// loadFields builds the form field map: scenario env first, then the first
// row of the data file on top. A row already loaded during validation is
// reused so the data file is read once per run.
func (sr *ScenarioRunner) loadFields(sc *flow.Scenario) (dataset.FieldMap, error) {
	fields := dataset.FieldMap{}
	for k, v := range sc.Config.Env {
		fields[k] = v
	}
	if sc.Config.DataFile == "" {
		return fields, nil
	}

	row := dataset.FieldMap(sc.Data)
	if row == nil {
		path := sc.DataPath(sr.config.DataDir)
		var err error
		row, err = dataset.FirstRow(path)
		if err != nil {
			return nil, core.ErrInvalidScenario.
				WithMessage(fmt.Sprintf("load data file %s", path)).
				WithCause(err)
		}
		logger.Debug("loaded %d form fields from %s", len(row), path)
	}
	for k, v := range row {
		fields[k] = v
	}
	return fields, nil
}

// runStep executes one step and fills in its result.
func (sr *ScenarioRunner) runStep(ctx context.Context, sc *flow.Scenario, idx int, step flow.Step, res *core.StepResult) error {
	ctx, span := tracing.StartSpan(ctx, "step "+string(step.Action))
	span.WithAttributes(map[string]string{
		"step.index":   fmt.Sprint(idx),
		"step.locator": res.Locator,
	})

	res.Step = step
	res.Status = core.StatusRunning
	res.StartTime = time.Now()

	err := sr.execute(ctx, sc, step)

	res.Duration = time.Since(res.StartTime)
	if err != nil {
		err = &StepError{Index: idx, Action: string(step.Action), Locator: res.Locator, Err: err}
		res.Status = core.StatusFailed
		res.Category = core.CategoryOf(err)
		res.Error = err.Error()
	} else {
		res.Status = core.StatusPassed
	}

	tracing.EndSpan(span, err)
	sr.config.Metrics.ObserveStep(res.Action, res.Status.String(), res.Duration)
	logger.WithFields(map[string]interface{}{
		"step":     idx + 1,
		"action":   res.Action,
		"status":   res.Status.String(),
		"duration": res.Duration,
	}).Debug(step.Describe())

	if sr.config.OnStepComplete != nil {
		sr.config.OnStepComplete(sc.Name(), *res)
	}
	return err
}

func (sr *ScenarioRunner) execute(ctx context.Context, sc *flow.Scenario, step flow.Step) error {
	d := sr.driver
	timeout := step.Timeout()
	if timeout <= 0 {
		timeout = sc.DefaultTimeout()
	}

	switch step.Action {
	case flow.ActionActivateApp:
		appID := step.AppID
		if appID == "" {
			appID = sc.Config.AppID
		}
		if appID == "" {
			return core.ErrInvalidScenario.WithMessage("activateApp needs an appId")
		}
		return d.ActivateApp(ctx, appID)

	case flow.ActionScroll:
		return d.ScrollToElement(ctx, step.Strategy, step.Selector, step.Direction)

	case flow.ActionClick:
		return d.Click(ctx, step.Locator, timeout)

	case flow.ActionSetValue:
		return d.SetValue(ctx, step.Locator, step.Value)

	case flow.ActionWaitUntilDisplayed:
		_, err := d.WaitUntilDisplayed(ctx, step.Locator, timeout)
		return err

	case flow.ActionAssertDisplayed:
		return d.AssertDisplayedWithin(ctx, step.Locator, step.Expect, timeout)
	}

	return core.ErrInvalidScenario.WithMessage(fmt.Sprintf("unknown step action %q", step.Action))
}

// fail moves the scenario to Failed and marks every step that did not run as skipped.
func (sr *ScenarioRunner) fail(res *core.ScenarioResult, stepIdx int, err error) {
	setStatus(res, core.ScenarioFailed)
	res.FailedStep = stepIdx
	res.Cause = err
	res.Error = err.Error()

	for i := range res.Steps {
		if res.Steps[i].Status == core.StatusPending {
			res.Steps[i].Status = core.StatusSkipped
		}
	}
}

func setStatus(res *core.ScenarioResult, next core.ScenarioStatus) {
	if !res.Status.CanTransition(next) {
		logger.Error("scenario %s: invalid transition %s -> %s", res.Name, res.Status, next)
		return
	}
	res.Status = next
}

func locatorOf(step flow.Step) string {
	if step.Action == flow.ActionScroll {
		return fmt.Sprintf("%s=%q", step.Strategy, step.Selector)
	}
	if step.Locator.IsEmpty() {
		return ""
	}
	return step.Locator.Describe()
}
