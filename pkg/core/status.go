package core

// ScenarioStatus is the state of one scenario run.
// Transitions: NotStarted -> Running -> {Passed, Failed}.
type ScenarioStatus int

const (
	ScenarioNotStarted ScenarioStatus = iota
	ScenarioRunning
	ScenarioPassed
	ScenarioFailed
)

// String returns the string representation of ScenarioStatus
func (s ScenarioStatus) String() string {
	switch s {
	case ScenarioNotStarted:
		return "not_started"
	case ScenarioRunning:
		return "running"
	case ScenarioPassed:
		return "passed"
	case ScenarioFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s ScenarioStatus) IsTerminal() bool {
	return s == ScenarioPassed || s == ScenarioFailed
}

// CanTransition reports whether moving from s to next is allowed.
func (s ScenarioStatus) CanTransition(next ScenarioStatus) bool {
	switch s {
	case ScenarioNotStarted:
		return next == ScenarioRunning
	case ScenarioRunning:
		return next == ScenarioPassed || next == ScenarioFailed
	default:
		return false
	}
}

// StepStatus represents the execution status of a step
type StepStatus int

const (
	StatusPending StepStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Step failed; the scenario stops here
	StatusSkipped                   // Not run because an earlier step failed
)

// String returns the string representation of StepStatus
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone       ErrorCategory = iota // No error
	ErrCategoryAssertion                       // Text mismatch, post-condition not met
	ErrCategoryTimeout                         // Wait for visibility timed out
	ErrCategoryConnection                      // Automation backend unreachable or crashed
	ErrCategoryConfig                          // Invalid scenario, missing form field
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryConfig:
		return "config"
	default:
		return "unknown"
	}
}
