package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/devicelab-dev/flowdriver/pkg/core"
	"github.com/devicelab-dev/flowdriver/pkg/flow"
	"github.com/devicelab-dev/flowdriver/pkg/logger"
	"github.com/devicelab-dev/flowdriver/pkg/metrics"
)

var errNotVisible = errors.New("element resolved but not displayed")

// FlowDriver sequences UI actions against a Backend. Every action that targets
// an element resolves it afresh; handles never outlive the call that found them.
type FlowDriver struct {
	backend core.Backend
	policy  core.WaitPolicy
	metrics *metrics.Recorder
}

// NewFlowDriver creates a FlowDriver. Zero policy fields take the defaults.
func NewFlowDriver(backend core.Backend, policy core.WaitPolicy) *FlowDriver {
	return &FlowDriver{
		backend: backend,
		policy:  policy.Normalize(),
	}
}

// WithMetrics records wait timings to m.
func (d *FlowDriver) WithMetrics(m *metrics.Recorder) *FlowDriver {
	d.metrics = m
	return d
}

// Policy returns the wait policy in effect when a call gives no timeout.
func (d *FlowDriver) Policy() core.WaitPolicy {
	return d.policy
}

// WaitUntilDisplayed polls at a fixed interval until loc resolves to a
// displayed element or timeout elapses. A non-positive timeout uses the
// policy default. Backend errors while polling count as "not found".
func (d *FlowDriver) WaitUntilDisplayed(ctx context.Context, loc flow.Locator, timeout time.Duration) (core.ElementHandle, error) {
	policy := d.policy.WithTimeout(timeout)
	deadline := time.Now().Add(policy.Timeout)

	// Backend calls may run at most one interval past the deadline.
	pollCtx, cancel := context.WithDeadline(ctx, deadline.Add(policy.Interval))
	defer cancel()

	var (
		handle  core.ElementHandle
		lastErr error
		polls   int
	)
	poll := func() error {
		polls++
		h, err := d.backend.FindElement(pollCtx, loc)
		if err != nil {
			lastErr = err
			return err
		}
		visible, err := d.backend.IsDisplayed(pollCtx, h)
		if err != nil {
			lastErr = err
			return err
		}
		if !visible {
			lastErr = errNotVisible
			return errNotVisible
		}
		handle = h
		return nil
	}

	start := time.Now()
	err := backoff.Retry(poll, newDeadlineBackOff(ctx, policy.Interval, deadline))
	d.metrics.ObserveWait(err == nil, polls, time.Since(start))
	if err == nil {
		return handle, nil
	}

	if ctx.Err() != nil {
		return "", fmt.Errorf("wait for %s: %w", loc.Describe(), ctx.Err())
	}

	logger.Debug("wait for %s timed out after %d polls: %v", loc.Describe(), polls, lastErr)
	details := map[string]interface{}{
		"locator": loc.Describe(),
		"timeout": policy.Timeout.String(),
		"polls":   polls,
	}
	if lastErr != nil {
		details["lastError"] = lastErr.Error()
	}
	return "", core.ErrElementNotFound.
		WithMessage(fmt.Sprintf("%s not displayed within %s", loc.Describe(), policy.Timeout)).
		WithDetails(details)
}

// deadlineBackOff polls at a fixed interval until deadline. The last sleep is
// shortened so one final poll lands on the deadline itself; only after that
// poll does it stop.
type deadlineBackOff struct {
	backoff.BackOff
	ctx      context.Context
	deadline time.Time
}

func newDeadlineBackOff(ctx context.Context, interval time.Duration, deadline time.Time) *deadlineBackOff {
	return &deadlineBackOff{
		BackOff:  backoff.NewConstantBackOff(interval),
		ctx:      ctx,
		deadline: deadline,
	}
}

// Context is the parent context; cancelling it ends the wait between polls.
func (b *deadlineBackOff) Context() context.Context {
	return b.ctx
}

func (b *deadlineBackOff) NextBackOff() time.Duration {
	if b.ctx.Err() != nil {
		return backoff.Stop
	}
	left := time.Until(b.deadline)
	if left <= 0 {
		return backoff.Stop
	}
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return backoff.Stop
	}
	if next > left {
		return left
	}
	return next
}

// Click waits for loc and then taps it exactly once.
func (d *FlowDriver) Click(ctx context.Context, loc flow.Locator, timeout time.Duration) error {
	h, err := d.WaitUntilDisplayed(ctx, loc, timeout)
	if err != nil {
		return err
	}
	if err := d.backend.Click(ctx, h); err != nil {
		return backendError(ctx, "click "+loc.Describe(), err)
	}
	return nil
}

// SetValue types value into the element at loc. The element must already be
// on screen: it is looked up once, without waiting.
func (d *FlowDriver) SetValue(ctx context.Context, loc flow.Locator, value string) error {
	h, err := d.backend.FindElement(ctx, loc)
	if err != nil {
		return backendError(ctx, "find "+loc.Describe(), err)
	}
	if err := d.backend.SetValue(ctx, h, value); err != nil {
		return backendError(ctx, "set value of "+loc.Describe(), err)
	}
	return nil
}

// ScrollToElement issues one directional scroll scoped to strategy/selector.
// It is best effort: a selector that matches nothing is not an error, and the
// target is not waited for.
func (d *FlowDriver) ScrollToElement(ctx context.Context, strategy, selector, direction string) error {
	err := d.backend.Scroll(ctx, strategy, selector, direction)
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrNoSuchElement) {
		logger.Warn("scroll %s=%q found nothing to scroll to", strategy, selector)
		return nil
	}
	return backendError(ctx, fmt.Sprintf("scroll %s=%q", strategy, selector), err)
}

// AssertDisplayed waits for loc with the default timeout and, when expected
// is non-nil, requires its text to equal *expected exactly.
func (d *FlowDriver) AssertDisplayed(ctx context.Context, loc flow.Locator, expected *string) error {
	return d.AssertDisplayedWithin(ctx, loc, expected, 0)
}

// AssertDisplayedWithin is AssertDisplayed with an explicit wait timeout.
func (d *FlowDriver) AssertDisplayedWithin(ctx context.Context, loc flow.Locator, expected *string, timeout time.Duration) error {
	h, err := d.WaitUntilDisplayed(ctx, loc, timeout)
	if err != nil {
		if errors.Is(err, core.ErrElementNotFound) {
			return core.ErrAssertion.
				WithMessage(fmt.Sprintf("expected %s to be displayed", loc.Describe())).
				WithDetails(map[string]interface{}{"locator": loc.Describe()}).
				WithCause(err)
		}
		return err
	}
	if expected == nil {
		return nil
	}

	actual, err := d.backend.GetText(ctx, h)
	if err != nil {
		return backendError(ctx, "get text of "+loc.Describe(), err)
	}
	if actual != *expected {
		return core.ErrTextMismatch.
			WithMessage(fmt.Sprintf("%s: expected text %q, got %q", loc.Describe(), *expected, actual)).
			WithDetails(map[string]interface{}{
				"locator":  loc.Describe(),
				"expected": *expected,
				"actual":   actual,
			})
	}
	return nil
}

// ActivateApp brings bundleID to the foreground.
func (d *FlowDriver) ActivateApp(ctx context.Context, bundleID string) error {
	if err := d.backend.ActivateApp(ctx, bundleID); err != nil {
		return backendError(ctx, "activate "+bundleID, err)
	}
	return nil
}

// backendError classifies an error from a single, non-polling backend call.
func backendError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	if errors.Is(err, core.ErrNoSuchElement) {
		return core.ErrElementNotFound.WithMessage(op).WithCause(err)
	}
	return core.ErrBackendTransport.WithMessage(op).WithCause(err)
}
