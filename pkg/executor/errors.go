package executor

import "fmt"

// StepError identifies the step that failed a scenario.
type StepError struct {
	Index   int    // 0-based step position
	Action  string // step action
	Locator string // Locator.Describe() of the target, empty if none
	Err     error
}

func (e *StepError) Error() string {
	if e.Locator != "" {
		return fmt.Sprintf("step %d %s %s: %v", e.Index+1, e.Action, e.Locator, e.Err)
	}
	return fmt.Sprintf("step %d %s: %v", e.Index+1, e.Action, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StepError) Unwrap() error {
	return e.Err
}
