// Package flow handles parsing and representation of UI test scenario files.
package flow

import (
	"path/filepath"
	"strings"
	"time"
)

// BuiltinPrefix marks the SourcePath of scenarios embedded in the binary.
const BuiltinPrefix = "builtin/"

// Scenario represents one complete, independent UI test flow.
type Scenario struct {
	SourcePath string // Path to the source file
	Config     Config // Scenario configuration (appId, tags, data file, etc.)
	Steps      []Step // Steps to execute, strictly in order

	// Data is the data file's first row once something has read it.
	// A nil Data with a DataFile set means the file has not been read yet.
	Data map[string]string
}

// Config represents scenario-level configuration.
type Config struct {
	Name     string            `yaml:"name"`
	AppID    string            `yaml:"appId"`
	Tags     []string          `yaml:"tags"`
	DataFile string            `yaml:"dataFile"` // CSV or XLSX feeding the form field map
	Timeout  int               `yaml:"timeout"`  // Default wait timeout in ms
	Env      map[string]string `yaml:"env"`      // Extra fields merged under the data row
}

// Name returns the configured name or the file name without extension.
func (s *Scenario) Name() string {
	if s.Config.Name != "" {
		return s.Config.Name
	}
	base := filepath.Base(s.SourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsBuiltin reports whether the scenario was loaded from the embedded set.
func (s *Scenario) IsBuiltin() bool {
	return strings.HasPrefix(s.SourcePath, BuiltinPrefix)
}

// DefaultTimeout returns the scenario's default wait timeout, or 0 if unset.
func (s *Scenario) DefaultTimeout() time.Duration {
	return time.Duration(s.Config.Timeout) * time.Millisecond
}

// DataPath resolves the data file location.
// Relative paths resolve against dataDir when given, otherwise against the
// scenario file's directory. Built-in scenarios without a dataDir resolve
// against the working directory.
func (s *Scenario) DataPath(dataDir string) string {
	p := s.Config.DataFile
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if dataDir != "" {
		return filepath.Join(dataDir, p)
	}
	if s.IsBuiltin() || s.SourcePath == "" {
		return p
	}
	return filepath.Join(filepath.Dir(s.SourcePath), p)
}

// HasTag returns true if the scenario carries the tag (case-insensitive).
func (s *Scenario) HasTag(tag string) bool {
	for _, t := range s.Config.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// MatchesTags checks a scenario against include and exclude tag filters.
// An empty include list matches everything; any excluded tag rejects.
func (s *Scenario) MatchesTags(include, exclude []string) bool {
	if len(include) > 0 {
		matched := false
		for _, tag := range include {
			if s.HasTag(tag) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, tag := range exclude {
		if s.HasTag(tag) {
			return false
		}
	}
	return true
}
