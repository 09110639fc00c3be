package appium

import (
	"context"
	"fmt"
	"strings"

	"github.com/devicelab-dev/flowdriver/pkg/core"
	"github.com/devicelab-dev/flowdriver/pkg/flow"
	"github.com/devicelab-dev/flowdriver/pkg/logger"
)

// Driver implements core.Backend using an Appium server.
type Driver struct {
	client   *Client
	platform string // from the session capabilities
	appID    string // app under test, if given in capabilities
}

// NewDriver creates a session on the Appium server.
func NewDriver(ctx context.Context, serverURL string, capabilities map[string]interface{}) (*Driver, error) {
	client := NewClient(serverURL)

	if err := client.Connect(ctx, capabilities); err != nil {
		return nil, err
	}

	d := &Driver{
		client:   client,
		platform: client.Platform(),
	}

	if appID, ok := capabilities["appium:appPackage"].(string); ok {
		d.appID = appID
	} else if appID, ok := capabilities["appium:bundleId"].(string); ok {
		d.appID = appID
	}

	logger.Info("appium session %s (%s)", client.SessionID(), d.platform)
	return d, nil
}

// Close ends the Appium session.
func (d *Driver) Close() error {
	return d.client.Disconnect(context.Background())
}

// Platform returns the session platform.
func (d *Driver) Platform() string {
	return d.platform
}

// ActivateApp implements core.Backend.
func (d *Driver) ActivateApp(ctx context.Context, bundleID string) error {
	if bundleID == "" {
		bundleID = d.appID
	}
	if bundleID == "" {
		return fmt.Errorf("no app id to activate")
	}
	return d.client.ActivateApp(ctx, bundleID)
}

// Scroll implements core.Backend via "mobile: scroll".
func (d *Driver) Scroll(ctx context.Context, strategy, selector, direction string) error {
	args := map[string]interface{}{
		"strategy": strategy,
		"selector": selector,
	}
	if direction != "" {
		args["direction"] = direction
	}
	_, err := d.client.ExecuteMobile(ctx, "scroll", args)
	return err
}

// FindElement implements core.Backend.
func (d *Driver) FindElement(ctx context.Context, loc flow.Locator) (core.ElementHandle, error) {
	using, value, err := d.strategyFor(loc)
	if err != nil {
		return "", err
	}
	id, err := d.client.FindElement(ctx, using, value)
	if err != nil {
		return "", err
	}
	return core.ElementHandle(id), nil
}

// IsDisplayed implements core.Backend.
func (d *Driver) IsDisplayed(ctx context.Context, h core.ElementHandle) (bool, error) {
	return d.client.IsElementDisplayed(ctx, string(h))
}

// GetText implements core.Backend.
func (d *Driver) GetText(ctx context.Context, h core.ElementHandle) (string, error) {
	return d.client.GetElementText(ctx, string(h))
}

// Click implements core.Backend.
func (d *Driver) Click(ctx context.Context, h core.ElementHandle) error {
	return d.client.ClickElement(ctx, string(h))
}

// SetValue implements core.Backend. The field is cleared first so the
// result is the given text and not an append.
func (d *Driver) SetValue(ctx context.Context, h core.ElementHandle, text string) error {
	if err := d.client.ClearElement(ctx, string(h)); err != nil {
		return err
	}
	return d.client.SendElementKeys(ctx, string(h), text)
}

// strategyFor maps a locator to a W3C "using"/"value" pair for the session platform.
func (d *Driver) strategyFor(loc flow.Locator) (string, string, error) {
	ios := d.platform == "ios"

	switch loc.Strategy {
	case flow.StrategyText:
		if ios {
			v := escapeIOSPredicateString(loc.Value)
			return "-ios predicate string", fmt.Sprintf(`label == "%s" OR name == "%s" OR value == "%s"`, v, v, v), nil
		}
		return "-android uiautomator", fmt.Sprintf(`new UiSelector().text("%s")`, escapeUiAutomatorString(loc.Value)), nil

	case flow.StrategyDescription:
		if ios {
			return "accessibility id", loc.Value, nil
		}
		return "-android uiautomator", fmt.Sprintf(`new UiSelector().description("%s")`, escapeUiAutomatorString(loc.Value)), nil

	case flow.StrategyAccessibilityID:
		return "accessibility id", loc.Value, nil

	case flow.StrategyXPath:
		return "xpath", loc.Value, nil

	case flow.StrategyClassInstance:
		if ios {
			return "xpath", fmt.Sprintf("(//%s)[%d]", loc.Value, loc.Index+1), nil
		}
		return "-android uiautomator", fmt.Sprintf(`new UiSelector().className("%s").instance(%d)`, escapeUiAutomatorString(loc.Value), loc.Index), nil

	case flow.StrategyUiAutomator:
		if ios {
			return "", "", fmt.Errorf("uiautomator locator is not supported on ios")
		}
		return "-android uiautomator", loc.Value, nil
	}

	return "", "", fmt.Errorf("unsupported locator strategy %q", loc.Strategy)
}

// escapeUiAutomatorString escapes quotes for UiAutomator string
func escapeUiAutomatorString(s string) string {
	return quoteEscaper.Replace(s)
}

// escapeIOSPredicateString escapes quotes for iOS predicate string
func escapeIOSPredicateString(s string) string {
	return quoteEscaper.Replace(s)
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)
