package flow

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single scenario YAML file.
func ParseFile(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided scenario file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// Parse parses scenario YAML content.
// A file is either a bare step list, or a config document followed by "---"
// and the step list.
func Parse(data []byte, sourcePath string) (*Scenario, error) {
	docs, err := splitDocuments(data)
	if err != nil {
		return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	sc := &Scenario{SourcePath: sourcePath}

	switch len(docs) {
	case 0:
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "empty scenario file"}
	case 1:
		if err := parseSteps(docs[0], sc); err != nil {
			return nil, err
		}
	case 2:
		if err := docs[0].Decode(&sc.Config); err != nil {
			return nil, wrapParseError(sourcePath, docs[0].Line, fmt.Errorf("invalid config: %w", err))
		}
		if err := parseSteps(docs[1], sc); err != nil {
			return nil, err
		}
	default:
		return nil, &ParseError{Path: sourcePath, Message: fmt.Sprintf("expected at most 2 documents, got %d", len(docs))}
	}

	if len(sc.Steps) == 0 {
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "scenario has no steps"}
	}
	return sc, nil
}

func splitDocuments(data []byte) ([]*yaml.Node, error) {
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	var docs []*yaml.Node
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(doc.Content) == 0 {
			continue
		}
		docs = append(docs, doc.Content[0])
	}
	return docs, nil
}

func parseSteps(node *yaml.Node, sc *Scenario) error {
	if node.Kind != yaml.SequenceNode {
		return &ParseError{Path: sc.SourcePath, Line: node.Line, Message: "steps must be a list"}
	}
	for _, item := range node.Content {
		step, err := parseStep(item, sc.SourcePath)
		if err != nil {
			return err
		}
		sc.Steps = append(sc.Steps, step)
	}
	return nil
}

// stepFields is the YAML mapping form of a step value.
type stepFields struct {
	locatorFields `yaml:",inline"`

	Timeout   int     `yaml:"timeout"`
	Value     string  `yaml:"value"`
	Expect    *string `yaml:"expect"`
	AppID     string  `yaml:"appId"`
	Label     string  `yaml:"label"`
	Strategy  string  `yaml:"strategy"`
	Selector  string  `yaml:"selector"`
	Direction string  `yaml:"direction"`
}

func parseStep(node *yaml.Node, sourcePath string) (Step, error) {
	// "- activateApp" with no parameters
	if node.Kind == yaml.ScalarNode {
		if !isAction(node.Value) {
			return Step{}, &ParseError{Path: sourcePath, Line: node.Line, Message: fmt.Sprintf("unknown step type: %s", node.Value)}
		}
		step := Step{Action: Action(node.Value), Line: node.Line}
		return step, checkStep(step, sourcePath)
	}

	if node.Kind != yaml.MappingNode || len(node.Content) != 2 {
		return Step{}, &ParseError{Path: sourcePath, Line: node.Line, Message: "step must be a single-key mapping or command name"}
	}

	key, value := node.Content[0].Value, node.Content[1]
	if !isAction(key) {
		return Step{}, &ParseError{Path: sourcePath, Line: node.Line, Message: fmt.Sprintf("unknown step type: %s", key)}
	}
	step := Step{Action: Action(key), Line: node.Line}

	if value.Kind == yaml.ScalarNode {
		// Scalar shorthand: appId for activateApp, visible text for element steps.
		switch step.Action {
		case ActionActivateApp:
			step.AppID = value.Value
		case ActionScroll, ActionSetValue:
			return Step{}, &ParseError{Path: sourcePath, Line: value.Line, Message: fmt.Sprintf("%s requires a mapping", key)}
		default:
			step.Locator = ByText(value.Value)
		}
		return step, checkStep(step, sourcePath)
	}

	var f stepFields
	if err := value.Decode(&f); err != nil {
		return Step{}, wrapParseError(sourcePath, value.Line, err)
	}
	loc, err := f.locator()
	if err != nil {
		return Step{}, wrapParseError(sourcePath, value.Line, err)
	}

	step.Locator = loc
	step.TimeoutMs = f.Timeout
	step.Value = f.Value
	step.Expect = f.Expect
	step.AppID = f.AppID
	step.Label = f.Label
	step.Strategy = f.Strategy
	step.Selector = f.Selector
	step.Direction = f.Direction
	return step, checkStep(step, sourcePath)
}

func checkStep(step Step, sourcePath string) error {
	if step.NeedsLocator() && step.Locator.IsEmpty() {
		return &ParseError{Path: sourcePath, Line: step.Line, Message: fmt.Sprintf("%s requires a locator", step.Action)}
	}
	if step.Action == ActionScroll && (step.Strategy == "" || step.Selector == "") {
		return &ParseError{Path: sourcePath, Line: step.Line, Message: "scroll requires strategy and selector"}
	}
	if step.TimeoutMs < 0 {
		return &ParseError{Path: sourcePath, Line: step.Line, Message: "timeout must not be negative"}
	}
	return nil
}

func isAction(key string) bool {
	switch Action(key) {
	case ActionActivateApp, ActionScroll, ActionClick, ActionSetValue,
		ActionWaitUntilDisplayed, ActionAssertDisplayed:
		return true
	}
	return false
}

func wrapParseError(path string, line int, err error) error {
	return &ParseError{Path: path, Line: line, Message: err.Error()}
}
