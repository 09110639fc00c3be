// Package core provides the execution model types for flowdriver.
package core

import (
	"context"
	"errors"
	"time"

	"github.com/devicelab-dev/flowdriver/pkg/flow"
)

// ErrNoSuchElement is returned by a Backend when a locator does not resolve.
// Any other error from a Backend is treated as a transport failure.
var ErrNoSuchElement = errors.New("no such element")

// ElementHandle is an opaque reference to an element resolved on the current screen.
// It is not valid across screen transitions and must not be cached between steps.
type ElementHandle string

// Backend is the device automation contract the flow driver consumes.
// Implementations: Appium (W3C WebDriver), mock.
type Backend interface {
	// ActivateApp brings the app to the foreground, launching it if needed.
	ActivateApp(ctx context.Context, bundleID string) error

	// Scroll issues a directional scroll scoped to a strategy/selector pair.
	// An empty direction lets the backend pick its default.
	Scroll(ctx context.Context, strategy, selector, direction string) error

	// FindElement resolves a locator once. Returns ErrNoSuchElement if absent.
	FindElement(ctx context.Context, loc flow.Locator) (ElementHandle, error)

	IsDisplayed(ctx context.Context, h ElementHandle) (bool, error)
	GetText(ctx context.Context, h ElementHandle) (string, error)
	Click(ctx context.Context, h ElementHandle) error
	SetValue(ctx context.Context, h ElementHandle, text string) error
}

// Closer is implemented by backends holding a session.
type Closer interface {
	Close() error
}

// Default wait policy values.
const (
	DefaultWaitTimeout  = 10 * time.Second
	DefaultPollInterval = 200 * time.Millisecond
)

// WaitPolicy bounds a wait-for-visibility by time, polling at a fixed interval.
type WaitPolicy struct {
	Timeout  time.Duration
	Interval time.Duration
}

// DefaultWaitPolicy returns the policy used when nothing is configured.
func DefaultWaitPolicy() WaitPolicy {
	return WaitPolicy{Timeout: DefaultWaitTimeout, Interval: DefaultPollInterval}
}

// WithTimeout returns a copy using timeout when it is positive.
func (p WaitPolicy) WithTimeout(timeout time.Duration) WaitPolicy {
	if timeout > 0 {
		p.Timeout = timeout
	}
	return p
}

// Normalize fills zero fields with defaults.
func (p WaitPolicy) Normalize() WaitPolicy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultWaitTimeout
	}
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	return p
}
