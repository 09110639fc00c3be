package core

import (
	"time"

	"github.com/devicelab-dev/flowdriver/pkg/flow"
)

// StepResult captures the outcome of executing a single step
type StepResult struct {
	Step     flow.Step     `json:"-"`
	Index    int           `json:"index"`  // 0-based position in scenario
	Action   string        `json:"action"` // click, setValue, assertDisplayed, ...
	Locator  string        `json:"locator,omitempty"`
	Status   StepStatus    `json:"status"`
	Category ErrorCategory `json:"errorCategory,omitempty"`

	StartTime time.Time     `json:"startTime"`
	Duration  time.Duration `json:"duration"`

	Error string `json:"error,omitempty"`
}

// ScenarioResult captures the outcome of executing a scenario
type ScenarioResult struct {
	Name     string   `json:"name"`
	FilePath string   `json:"filePath"`
	Tags     []string `json:"tags,omitempty"`

	Status    ScenarioStatus `json:"status"`
	StartTime time.Time      `json:"startTime"`
	Duration  time.Duration  `json:"duration"`

	Steps []StepResult `json:"steps"`

	// Set when Status is ScenarioFailed
	FailedStep int    `json:"failedStep"` // -1 when no step failed
	Error      string `json:"error,omitempty"`
	Cause      error  `json:"-"`
}

// Passed returns true if the scenario finished successfully.
func (r *ScenarioResult) Passed() bool {
	return r.Status == ScenarioPassed
}

// CountSteps returns passed, failed and skipped step counts.
func (r *ScenarioResult) CountSteps() (passed, failed, skipped int) {
	for _, s := range r.Steps {
		switch s.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return passed, failed, skipped
}
