// Package mock provides a scripted in-memory automation backend for testing without a device.
package mock

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/devicelab-dev/flowdriver/pkg/core"
	"github.com/devicelab-dev/flowdriver/pkg/flow"
)

// Element is a scripted on-screen element.
type Element struct {
	Text string
	// AppearAfter makes the first N lookups miss before the element resolves.
	AppearAfter int
	// Hidden elements resolve but report IsDisplayed=false.
	Hidden bool
	// OnClick runs after a click, e.g. to reveal the next screen.
	OnClick func(b *Backend)
}

// Call records one backend invocation.
type Call struct {
	Method  string
	Locator flow.Locator
	Handle  core.ElementHandle
	Arg     string
	At      time.Time
}

// Config configures mock backend behavior.
type Config struct {
	// Permissive resolves every locator to a visible element whose text is
	// derived from the locator itself. Useful for dry runs.
	Permissive bool
	// Latency adds artificial delay per call
	Latency time.Duration
	// FailOnCall makes call N fail with a transport error (1-indexed). 0 = never fail.
	FailOnCall int
}

// Backend is a mock implementation of core.Backend.
type Backend struct {
	Config Config

	mu        sync.Mutex
	elements  map[flow.Locator]*Element
	lookups   map[flow.Locator]int
	handles   map[core.ElementHandle]flow.Locator
	values    map[flow.Locator]string
	calls     []Call
	callCount int
	nextID    int
	activeApp string
	down      error
}

// New creates a new mock backend.
func New(cfg Config) *Backend {
	return &Backend{
		Config:   cfg,
		elements: make(map[flow.Locator]*Element),
		lookups:  make(map[flow.Locator]int),
		handles:  make(map[core.ElementHandle]flow.Locator),
		values:   make(map[flow.Locator]string),
	}
}

// Add places an element on screen. It replaces any element with the same locator.
func (b *Backend) Add(loc flow.Locator, el Element) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := el
	b.elements[loc] = &e
	delete(b.lookups, loc)
	return b
}

// Remove takes an element off screen.
func (b *Backend) Remove(loc flow.Locator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.elements, loc)
}

// SetText changes the rendered text of an element.
func (b *Backend) SetText(loc flow.Locator, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if el, ok := b.elements[loc]; ok {
		el.Text = text
	}
}

// Disconnect makes every following call fail with err, simulating a crashed session.
func (b *Backend) Disconnect(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.down = err
}

// Calls returns a copy of the recorded calls.
func (b *Backend) Calls() []Call {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Call, len(b.calls))
	copy(out, b.calls)
	return out
}

// CallsTo returns recorded calls of one method.
func (b *Backend) CallsTo(method string) []Call {
	var out []Call
	for _, c := range b.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Value returns what was typed into the element at loc.
func (b *Backend) Value(loc flow.Locator) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.values[loc]
}

// ActiveApp returns the last activated bundle id.
func (b *Backend) ActiveApp() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeApp
}

// ActivateApp implements core.Backend.
func (b *Backend) ActivateApp(ctx context.Context, bundleID string) error {
	if err := b.begin(ctx, Call{Method: "ActivateApp", Arg: bundleID}); err != nil {
		return err
	}
	b.mu.Lock()
	b.activeApp = bundleID
	b.mu.Unlock()
	return nil
}

// Scroll implements core.Backend.
func (b *Backend) Scroll(ctx context.Context, strategy, selector, direction string) error {
	return b.begin(ctx, Call{Method: "Scroll", Arg: fmt.Sprintf("%s|%s|%s", strategy, selector, direction)})
}

// FindElement implements core.Backend.
func (b *Backend) FindElement(ctx context.Context, loc flow.Locator) (core.ElementHandle, error) {
	if err := b.begin(ctx, Call{Method: "FindElement", Locator: loc}); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	el, ok := b.elements[loc]
	if !ok && b.Config.Permissive {
		el = &Element{Text: permissiveText(loc)}
		b.elements[loc] = el
		ok = true
	}
	if !ok {
		return "", core.ErrNoSuchElement
	}

	b.lookups[loc]++
	if b.lookups[loc] <= el.AppearAfter {
		return "", core.ErrNoSuchElement
	}

	b.nextID++
	h := core.ElementHandle(fmt.Sprintf("el-%d", b.nextID))
	b.handles[h] = loc
	return h, nil
}

// IsDisplayed implements core.Backend.
func (b *Backend) IsDisplayed(ctx context.Context, h core.ElementHandle) (bool, error) {
	el, err := b.resolve(ctx, "IsDisplayed", h, "")
	if err != nil {
		return false, err
	}
	return !el.Hidden, nil
}

// GetText implements core.Backend.
func (b *Backend) GetText(ctx context.Context, h core.ElementHandle) (string, error) {
	el, err := b.resolve(ctx, "GetText", h, "")
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return el.Text, nil
}

// Click implements core.Backend.
func (b *Backend) Click(ctx context.Context, h core.ElementHandle) error {
	el, err := b.resolve(ctx, "Click", h, "")
	if err != nil {
		return err
	}
	if el.OnClick != nil {
		el.OnClick(b)
	}
	return nil
}

// SetValue implements core.Backend.
func (b *Backend) SetValue(ctx context.Context, h core.ElementHandle, text string) error {
	if _, err := b.resolve(ctx, "SetValue", h, text); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[b.handles[h]] = text
	return nil
}

// Close implements core.Closer.
func (b *Backend) Close() error {
	return nil
}

func (b *Backend) begin(ctx context.Context, c Call) error {
	if b.Config.Latency > 0 {
		select {
		case <-time.After(b.Config.Latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c.At = time.Now()
	b.calls = append(b.calls, c)
	b.callCount++

	if b.down != nil {
		return b.down
	}
	if b.Config.FailOnCall > 0 && b.callCount == b.Config.FailOnCall {
		return fmt.Errorf("mock transport failure on call %d (%s)", b.callCount, c.Method)
	}
	return nil
}

// resolve maps a handle back to a live element. A handle whose element has
// been removed is stale and reported as not found.
func (b *Backend) resolve(ctx context.Context, method string, h core.ElementHandle, arg string) (*Element, error) {
	b.mu.Lock()
	loc := b.handles[h]
	b.mu.Unlock()

	if err := b.begin(ctx, Call{Method: method, Locator: loc, Handle: h, Arg: arg}); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	el, ok := b.elements[loc]
	if !ok {
		return nil, fmt.Errorf("stale element %s: %w", h, core.ErrNoSuchElement)
	}
	return el, nil
}

var xpathText = regexp.MustCompile(`@text="([^"]*)"`)

// permissiveText guesses the rendered text an element found by loc would have.
func permissiveText(loc flow.Locator) string {
	switch loc.Strategy {
	case flow.StrategyText:
		return loc.Value
	case flow.StrategyXPath:
		if m := xpathText.FindStringSubmatch(loc.Value); m != nil {
			return m[1]
		}
	}
	return ""
}
