package flow

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// Action is the kind of work a step asks the flow driver to do.
type Action string

// Step actions.
const (
	ActionActivateApp        Action = "activateApp"
	ActionScroll             Action = "scroll"
	ActionClick              Action = "click"
	ActionSetValue           Action = "setValue"
	ActionWaitUntilDisplayed Action = "waitUntilDisplayed"
	ActionAssertDisplayed    Action = "assertDisplayed"
)

// Step is one descriptor in a scenario: a locator, an action and its parameters.
type Step struct {
	Action    Action
	Locator   Locator
	TimeoutMs int     // Wait timeout; 0 = scenario or driver default
	Value     string  // setValue: text to type
	Expect    *string // assertDisplayed: exact expected text, nil = visibility only
	AppID     string  // activateApp: bundle id, empty = scenario appId
	Label     string  // Optional display label

	// scroll
	Strategy  string
	Selector  string
	Direction string

	Line int // Source line, 0 for steps built in code
}

// Timeout returns the step timeout or 0 if unset.
func (s Step) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}

// NeedsLocator returns true if the action targets an element.
func (s Step) NeedsLocator() bool {
	switch s.Action {
	case ActionClick, ActionSetValue, ActionWaitUntilDisplayed, ActionAssertDisplayed:
		return true
	}
	return false
}

// Describe returns a human-readable description.
func (s Step) Describe() string {
	if s.Label != "" {
		return s.Label
	}
	switch s.Action {
	case ActionActivateApp:
		if s.AppID != "" {
			return fmt.Sprintf("activateApp %s", s.AppID)
		}
		return string(s.Action)
	case ActionScroll:
		return fmt.Sprintf("scroll %s=%q", s.Strategy, s.Selector)
	case ActionSetValue:
		return fmt.Sprintf("setValue %s", s.Locator.Describe())
	case ActionAssertDisplayed:
		if s.Expect != nil {
			return fmt.Sprintf("assertDisplayed %s has text %s", s.Locator.Describe(), strconv.Quote(*s.Expect))
		}
	}
	return fmt.Sprintf("%s %s", s.Action, s.Locator.Describe())
}

var fieldRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// MissingFieldError lists ${Field} references that have no value.
type MissingFieldError struct {
	Fields []string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("undefined fields: %v", e.Fields)
}

// Resolve returns a copy of the step with ${Field} references replaced from fields.
func (s Step) Resolve(fields map[string]string) (Step, error) {
	missing := map[string]bool{}
	expand := func(in string) string {
		return fieldRef.ReplaceAllStringFunc(in, func(m string) string {
			name := fieldRef.FindStringSubmatch(m)[1]
			v, ok := fields[name]
			if !ok {
				missing[name] = true
				return m
			}
			return v
		})
	}

	out := s
	out.Value = expand(s.Value)
	out.Locator.Value = expand(s.Locator.Value)
	out.Selector = expand(s.Selector)
	if s.Expect != nil {
		e := expand(*s.Expect)
		out.Expect = &e
	}

	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for n := range missing {
			names = append(names, n)
		}
		sort.Strings(names)
		return s, &MissingFieldError{Fields: names}
	}
	return out, nil
}

// FieldRefs returns the distinct ${Field} names referenced by the step.
func (s Step) FieldRefs() []string {
	seen := map[string]bool{}
	var names []string
	texts := []string{s.Value, s.Locator.Value, s.Selector}
	if s.Expect != nil {
		texts = append(texts, *s.Expect)
	}
	for _, t := range texts {
		for _, m := range fieldRef.FindAllStringSubmatch(t, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				names = append(names, m[1])
			}
		}
	}
	return names
}
