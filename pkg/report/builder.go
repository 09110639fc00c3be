package report

import (
	"time"

	"github.com/devicelab-dev/flowdriver/pkg/core"
)

// BuilderConfig contains run-level information for building a report.
type BuilderConfig struct {
	RunID         string
	StartTime     time.Time
	Duration      time.Duration
	AppID         string
	RunnerVersion string
	Driver        string
}

// Build converts scenario results into a report Index.
// Results that never started are reported as skipped.
func Build(results []*core.ScenarioResult, cfg BuilderConfig) *Index {
	start := cfg.StartTime
	if start.IsZero() {
		start = time.Now()
	}

	index := &Index{
		Version:   Version,
		RunID:     cfg.RunID,
		Status:    StatusPassed,
		StartTime: start,
		EndTime:   start.Add(cfg.Duration),
		Duration:  cfg.Duration.Milliseconds(),
		App:       App{ID: cfg.AppID},
		Runner: RunnerInfo{
			Version: cfg.RunnerVersion,
			Driver:  cfg.Driver,
		},
		Scenarios: make([]ScenarioEntry, 0, len(results)),
	}

	for i, r := range results {
		if r == nil {
			continue
		}
		entry := buildScenario(i, r)
		index.Scenarios = append(index.Scenarios, entry)

		index.Summary.Total++
		switch entry.Status {
		case StatusPassed:
			index.Summary.Passed++
		case StatusFailed:
			index.Summary.Failed++
			index.Status = StatusFailed
		default:
			index.Summary.Skipped++
		}
	}

	return index
}

func buildScenario(i int, r *core.ScenarioResult) ScenarioEntry {
	entry := ScenarioEntry{
		Index:      i,
		Name:       r.Name,
		SourceFile: r.FilePath,
		Tags:       r.Tags,
		Status:     scenarioStatus(r.Status),
		StartTime:  r.StartTime,
		Duration:   r.Duration.Milliseconds(),
		Steps:      make([]StepEntry, 0, len(r.Steps)),
	}

	for _, s := range r.Steps {
		step := StepEntry{
			Index:    s.Index,
			Action:   s.Action,
			Label:    s.Step.Describe(),
			Locator:  s.Locator,
			Status:   s.Status.String(),
			Duration: s.Duration.Milliseconds(),
		}
		if s.Status == core.StatusFailed {
			step.Error = &Error{Type: errorType(s.Category), Message: s.Error}
		}
		entry.Steps = append(entry.Steps, step)
	}

	if r.Status == core.ScenarioFailed {
		if r.FailedStep >= 0 {
			failed := r.FailedStep
			entry.FailedStep = &failed
		}
		entry.Error = &Error{
			Type:    errorType(core.CategoryOf(r.Cause)),
			Message: r.Error,
		}
	}

	return entry
}

func scenarioStatus(s core.ScenarioStatus) Status {
	switch s {
	case core.ScenarioPassed:
		return StatusPassed
	case core.ScenarioFailed:
		return StatusFailed
	default:
		return StatusSkipped
	}
}

func errorType(c core.ErrorCategory) string {
	if c == core.ErrCategoryNone {
		return "unknown"
	}
	return c.String()
}
