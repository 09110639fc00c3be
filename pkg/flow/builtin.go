package flow

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// Builtin returns the scenarios shipped with the binary, sorted by file name.
func Builtin() ([]*Scenario, error) {
	names, err := fs.Glob(builtinFS, "builtin/*.yaml")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		data, err := builtinFS.ReadFile(name)
		if err != nil {
			return nil, err
		}
		sc, err := Parse(data, BuiltinPrefix+path.Base(name))
		if err != nil {
			return nil, fmt.Errorf("builtin scenario %s: %w", name, err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// BuiltinByName returns the embedded scenario with the given name.
func BuiltinByName(name string) (*Scenario, error) {
	all, err := Builtin()
	if err != nil {
		return nil, err
	}
	for _, sc := range all {
		if sc.Name() == name {
			return sc, nil
		}
	}
	return nil, fmt.Errorf("no builtin scenario named %q", name)
}
