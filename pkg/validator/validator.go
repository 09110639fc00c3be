// Package validator validates scenario files before execution.
// It parses all files upfront, applies tag filters and checks that every
// ${Field} reference can be satisfied.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/devicelab-dev/flowdriver/pkg/dataset"
	"github.com/devicelab-dev/flowdriver/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Step    int // 1-based, 0 when the error is not about one step
	Message string
}

func (e *ValidationError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("%s: step %d: %s", e.File, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Scenarios that parsed and passed the tag filters, in file order.
	Scenarios []*flow.Scenario
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Files returns the source paths of the accepted scenarios.
func (r *Result) Files() []string {
	files := make([]string, len(r.Scenarios))
	for i, sc := range r.Scenarios {
		files[i] = sc.SourcePath
	}
	return files
}

// Validator validates scenario files.
type Validator struct {
	includeTags []string
	excludeTags []string
	dataDir     string
	env         map[string]string
	appID       string
}

// New creates a new Validator.
func New(includeTags, excludeTags []string) *Validator {
	return &Validator{
		includeTags: includeTags,
		excludeTags: excludeTags,
	}
}

// WithDataDir sets the base directory for relative data files.
func (v *Validator) WithDataDir(dir string) *Validator {
	v.dataDir = dir
	return v
}

// WithSuiteDefaults sets fields and an app id shared by every scenario.
// A scenario's own env entries and appId take precedence.
func (v *Validator) WithSuiteDefaults(env map[string]string, appID string) *Validator {
	v.env = env
	v.appID = appID
	return v
}

// Validate validates each path, which may be a file or a directory.
func (v *Validator) Validate(paths ...string) *Result {
	result := &Result{}
	seen := make(map[string]bool)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("cannot access: %v", err),
			})
			continue
		}

		files := []string{path}
		if info.IsDir() {
			files, err = collectScenarioFiles(path)
			if err != nil {
				result.Errors = append(result.Errors, &ValidationError{
					File:    path,
					Message: fmt.Sprintf("failed to scan directory: %v", err),
				})
				continue
			}
		}

		for _, file := range files {
			if seen[file] {
				continue
			}
			seen[file] = true
			v.validateFile(file, result)
		}
	}

	return result
}

// ValidateScenarios checks already-parsed scenarios, such as the built-in set.
func (v *Validator) ValidateScenarios(scenarios []*flow.Scenario) *Result {
	result := &Result{}
	for _, sc := range scenarios {
		v.accept(sc, result)
	}
	return result
}

// collectScenarioFiles finds all .yaml/.yml files in a directory.
func collectScenarioFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

func (v *Validator) validateFile(filePath string, result *Result) {
	sc, err := flow.ParseFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}
	v.accept(sc, result)
}

// accept applies tag filters and, for a kept scenario, the semantic checks.
func (v *Validator) accept(sc *flow.Scenario, result *Result) {
	if !sc.MatchesTags(v.includeTags, v.excludeTags) {
		return
	}
	v.applyDefaults(sc)

	errs := v.check(sc)
	if len(errs) > 0 {
		result.Errors = append(result.Errors, errs...)
		return
	}
	result.Scenarios = append(result.Scenarios, sc)
}

func (v *Validator) applyDefaults(sc *flow.Scenario) {
	if sc.Config.AppID == "" {
		sc.Config.AppID = v.appID
	}
	if len(v.env) == 0 {
		return
	}
	merged := make(map[string]string, len(v.env)+len(sc.Config.Env))
	for k, val := range v.env {
		merged[k] = val
	}
	for k, val := range sc.Config.Env {
		merged[k] = val
	}
	sc.Config.Env = merged
}

// check finds problems that parsing cannot: unsatisfiable field references,
// unreadable data files and activateApp steps with no app id.
func (v *Validator) check(sc *flow.Scenario) []error {
	var errs []error
	file := sc.SourcePath

	available := make(map[string]bool)
	for k := range sc.Config.Env {
		available[k] = true
	}

	if sc.Config.DataFile != "" {
		path := sc.DataPath(v.dataDir)
		fields, err := dataset.FirstRow(path)
		if err != nil {
			errs = append(errs, &ValidationError{
				File:    file,
				Message: fmt.Sprintf("data file: %v", err),
			})
			return errs
		}
		for k := range fields {
			available[k] = true
		}
		sc.Data = fields
	}

	for i, step := range sc.Steps {
		for _, ref := range step.FieldRefs() {
			if !available[ref] {
				errs = append(errs, &ValidationError{
					File:    file,
					Step:    i + 1,
					Message: fmt.Sprintf("undefined field ${%s}", ref),
				})
			}
		}
		if step.Action == flow.ActionActivateApp && step.AppID == "" && sc.Config.AppID == "" {
			errs = append(errs, &ValidationError{
				File:    file,
				Step:    i + 1,
				Message: "activateApp without appId",
			})
		}
	}

	return errs
}
