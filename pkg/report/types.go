// Package report writes run results as JSON and JUnit XML.
//
// Files:
//   - report.json: run summary plus every scenario and step outcome
//   - junit.xml: one testcase per scenario, for CI systems
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Index is the main report document.
type Index struct {
	Version   string          `json:"version"`
	RunID     string          `json:"runId"`
	Status    Status          `json:"status"`
	StartTime time.Time       `json:"startTime"`
	EndTime   time.Time       `json:"endTime"`
	Duration  int64           `json:"duration"` // milliseconds, wall clock
	App       App             `json:"app"`
	Runner    RunnerInfo      `json:"runner"`
	Summary   Summary         `json:"summary"`
	Scenarios []ScenarioEntry `json:"scenarios"`
}

// App contains application information.
type App struct {
	ID string `json:"id"` // Bundle ID or package name
}

// RunnerInfo describes the binary that produced the report.
type RunnerInfo struct {
	Version string `json:"version"`
	Driver  string `json:"driver"` // appium, mock
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// ScenarioEntry is the outcome of one scenario.
type ScenarioEntry struct {
	Index      int         `json:"index"` // Original position
	Name       string      `json:"name"`
	SourceFile string      `json:"sourceFile"`
	Tags       []string    `json:"tags,omitempty"`
	Status     Status      `json:"status"`
	StartTime  time.Time   `json:"startTime"`
	Duration   int64       `json:"duration"` // milliseconds
	Steps      []StepEntry `json:"steps"`
	FailedStep *int        `json:"failedStep,omitempty"`
	Error      *Error      `json:"error,omitempty"`
}

// StepEntry is the outcome of one step.
type StepEntry struct {
	Index    int    `json:"index"`
	Action   string `json:"action"`
	Label    string `json:"label"`
	Locator  string `json:"locator,omitempty"`
	Status   string `json:"status"`
	Duration int64  `json:"duration"` // milliseconds
	Error    *Error `json:"error,omitempty"`
}

// Error contains error details.
type Error struct {
	Type    string `json:"type"` // assertion, timeout, connection, config, unknown
	Message string `json:"message"`
}
