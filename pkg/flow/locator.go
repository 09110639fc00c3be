package flow

import (
	"fmt"
	"strconv"
)

// Strategy describes how a Locator finds an element.
type Strategy string

// Locator strategies.
const (
	StrategyText            Strategy = "text"
	StrategyDescription     Strategy = "description"
	StrategyAccessibilityID Strategy = "accessibility id"
	StrategyXPath           Strategy = "xpath"
	StrategyClassInstance   Strategy = "class instance"
	StrategyUiAutomator     Strategy = "-android uiautomator"
)

// Locator is a tagged description of how to find a UI element.
// It is a plain value: two locators built from the same input compare equal.
type Locator struct {
	Strategy Strategy
	Value    string
	Index    int // Instance index, only for StrategyClassInstance
}

// ByText finds an element by its exact visible text.
func ByText(text string) Locator {
	return Locator{Strategy: StrategyText, Value: text}
}

// ByDescription finds an element by its content description.
func ByDescription(desc string) Locator {
	return Locator{Strategy: StrategyDescription, Value: desc}
}

// ByAccessibilityID finds an element by accessibility identifier.
func ByAccessibilityID(id string) Locator {
	return Locator{Strategy: StrategyAccessibilityID, Value: id}
}

// ByXPath finds an element by structural path.
func ByXPath(path string) Locator {
	return Locator{Strategy: StrategyXPath, Value: path}
}

// ByClassInstance finds the index-th element (0-based) of a widget class.
func ByClassInstance(className string, index int) Locator {
	return Locator{Strategy: StrategyClassInstance, Value: className, Index: index}
}

// ByUiAutomator passes a raw UiSelector expression through to the backend.
func ByUiAutomator(expr string) Locator {
	return Locator{Strategy: StrategyUiAutomator, Value: expr}
}

// IsEmpty returns true if the locator has no strategy.
func (l Locator) IsEmpty() bool {
	return l.Strategy == ""
}

// Describe returns a human-readable description like text="Login".
func (l Locator) Describe() string {
	switch l.Strategy {
	case "":
		return ""
	case StrategyClassInstance:
		return fmt.Sprintf("class=%q[%d]", l.Value, l.Index)
	case StrategyAccessibilityID:
		return "~" + l.Value
	default:
		return string(l.Strategy) + "=" + strconv.Quote(l.Value)
	}
}

// locatorFields is the YAML form shared by every step that targets an element.
type locatorFields struct {
	Text            string `yaml:"text"`
	Description     string `yaml:"description"`
	AccessibilityID string `yaml:"accessibilityId"`
	XPath           string `yaml:"xpath"`
	ClassName       string `yaml:"className"`
	Instance        int    `yaml:"instance"`
	UiAutomator     string `yaml:"uiautomator"`
}

// locator converts the YAML fields into a Locator.
// More than one strategy in a single step is an error.
func (f locatorFields) locator() (Locator, error) {
	var found []Locator
	if f.Text != "" {
		found = append(found, ByText(f.Text))
	}
	if f.Description != "" {
		found = append(found, ByDescription(f.Description))
	}
	if f.AccessibilityID != "" {
		found = append(found, ByAccessibilityID(f.AccessibilityID))
	}
	if f.XPath != "" {
		found = append(found, ByXPath(f.XPath))
	}
	if f.ClassName != "" {
		found = append(found, ByClassInstance(f.ClassName, f.Instance))
	}
	if f.UiAutomator != "" {
		found = append(found, ByUiAutomator(f.UiAutomator))
	}
	switch len(found) {
	case 0:
		return Locator{}, nil
	case 1:
		return found[0], nil
	default:
		return Locator{}, fmt.Errorf("step has %d locators, expected one", len(found))
	}
}
