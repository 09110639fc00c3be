package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devicelab-dev/flowdriver/pkg/config"
	"github.com/devicelab-dev/flowdriver/pkg/core"
	"github.com/devicelab-dev/flowdriver/pkg/flow"
	"github.com/devicelab-dev/flowdriver/pkg/validator"
	"github.com/urfave/cli/v2"
)

// RunConfig holds everything a run needs, merged from flags and flowdriver.yaml.
// Explicit flags win over the config file, which wins over flag defaults.
type RunConfig struct {
	// Scenario selection
	Paths       []string // Files or folders; empty means the built-in scenarios
	IncludeTags []string
	ExcludeTags []string

	// Backend
	Driver       string
	AppiumURL    string
	Capabilities map[string]interface{}
	AppID        string

	// Execution
	Env        map[string]string
	DataDir    string
	Policy     core.WaitPolicy
	Parallel   int
	StopOnFail bool
	Watch      bool

	// Output
	OutputDir   string
	HistoryPath string // Empty disables history
	MetricsFile string
	TraceFile   string
	LogLevel    string
}

// loadConfig loads the file named by --config, or flowdriver.yaml from the
// working directory when present.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadFromDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// selectionConfig builds the part of a RunConfig that picks and validates
// scenarios, for commands that do not run them.
func selectionConfig(c *cli.Context, suite *config.Config) (*RunConfig, error) {
	rc := &RunConfig{
		Paths:       c.Args().Slice(),
		IncludeTags: c.StringSlice("include-tags"),
		ExcludeTags: c.StringSlice("exclude-tags"),
		AppID:       suite.AppID,
		DataDir:     c.String("data-dir"),
		Env:         make(map[string]string),
	}
	if !c.IsSet("include-tags") {
		rc.IncludeTags = suite.IncludeTags
	}
	if !c.IsSet("exclude-tags") {
		rc.ExcludeTags = suite.ExcludeTags
	}
	if rc.DataDir == "" && suite.DataDir != "" {
		rc.DataDir = suite.Resolve(suite.DataDir)
	}
	if len(rc.Paths) == 0 && len(suite.Scenarios) > 0 {
		files, err := suite.ScenarioFiles()
		if err != nil {
			return nil, err
		}
		rc.Paths = files
	}

	for k, v := range suite.Env {
		rc.Env[k] = v
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		rc.Env[k] = v
	}
	return rc, nil
}

func buildRunConfig(c *cli.Context, suite *config.Config) (*RunConfig, error) {
	rc, err := selectionConfig(c, suite)
	if err != nil {
		return nil, err
	}

	pick := func(flag, fromConfig string) string {
		if c.IsSet(flag) || fromConfig == "" {
			return c.String(flag)
		}
		return fromConfig
	}

	rc.Driver = strings.ToLower(c.String("driver"))
	rc.AppiumURL = pick("appium-url", suite.AppiumURL)
	rc.StopOnFail = c.Bool("stop-on-fail")
	rc.Watch = c.Bool("watch")
	rc.MetricsFile = c.String("metrics-file")
	rc.TraceFile = c.String("trace-file")
	rc.LogLevel = pick("log-level", suite.LogLevel)
	if c.Bool("verbose") {
		rc.LogLevel = "debug"
	}

	rc.Policy = suite.WaitPolicy()
	if c.IsSet("timeout") {
		rc.Policy.Timeout = time.Duration(c.Int("timeout")) * time.Millisecond
	}
	if c.IsSet("poll-interval") {
		rc.Policy.Interval = time.Duration(c.Int("poll-interval")) * time.Millisecond
	}
	rc.Policy = rc.Policy.Normalize()

	rc.Parallel = suite.Parallel
	if c.IsSet("parallel") {
		rc.Parallel = c.Int("parallel")
	}
	if rc.Parallel < 0 {
		return nil, fmt.Errorf("--parallel must not be negative")
	}

	rc.Capabilities = cloneCapabilities(suite.Capabilities)
	if capsFile := c.String("caps"); capsFile != "" {
		caps, err := loadCapabilities(capsFile)
		if err != nil {
			return nil, err
		}
		for k, v := range caps {
			rc.Capabilities[k] = v
		}
	}

	output := c.String("output")
	if output == "" && suite.Output != "" {
		output = suite.Resolve(suite.Output)
	}
	outputDir, err := resolveOutputDir(output, c.Bool("flatten"))
	if err != nil {
		return nil, err
	}
	rc.OutputDir = outputDir

	if !c.Bool("no-history") {
		rc.HistoryPath = c.String("history-db")
		if rc.HistoryPath == "" {
			rc.HistoryPath = suite.HistoryPath()
		}
	}

	return rc, nil
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: ./reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./reports"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	// Create timestamp-based subfolder
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

// loadScenarios parses and validates the selected scenarios, applying tag
// filters and suite defaults. With no paths the built-in scenarios are used.
func loadScenarios(rc *RunConfig) ([]*flow.Scenario, error) {
	v := validator.New(rc.IncludeTags, rc.ExcludeTags).
		WithDataDir(rc.DataDir).
		WithSuiteDefaults(rc.Env, rc.AppID)

	var result *validator.Result
	if len(rc.Paths) == 0 {
		builtin, err := flow.Builtin()
		if err != nil {
			return nil, err
		}
		result = v.ValidateScenarios(builtin)
	} else {
		result = v.Validate(rc.Paths...)
	}

	if !result.IsValid() {
		msgs := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			msgs[i] = "  " + e.Error()
		}
		return nil, fmt.Errorf("validation failed:\n%s", strings.Join(msgs, "\n"))
	}
	if len(result.Scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios matched")
	}
	return result.Scenarios, nil
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}

// loadCapabilities loads Appium capabilities from a JSON file.
func loadCapabilities(capsFile string) (map[string]interface{}, error) {
	data, err := os.ReadFile(capsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read caps file: %w", err)
	}

	var caps map[string]interface{}
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse caps JSON: %w", err)
	}
	return caps, nil
}

// cloneCapabilities creates a copy of capabilities map.
func cloneCapabilities(caps map[string]interface{}) map[string]interface{} {
	if caps == nil {
		return make(map[string]interface{})
	}
	cloned := make(map[string]interface{}, len(caps))
	for k, v := range caps {
		cloned[k] = v
	}
	return cloned
}
