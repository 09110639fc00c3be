package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// File names written into the output directory.
const (
	JSONFile  = "report.json"
	JUnitFile = "junit.xml"
)

// Write writes report.json and junit.xml into outputDir.
func Write(outputDir string, index *Index) error {
	if err := WriteJSON(outputDir, index); err != nil {
		return err
	}
	return WriteJUnit(filepath.Join(outputDir, JUnitFile), index)
}

// WriteJSON writes the index as report.json into outputDir.
func WriteJSON(outputDir string, index *Index) error {
	if err := ensureDir(outputDir); err != nil {
		return err
	}
	return atomicWriteJSON(filepath.Join(outputDir, JSONFile), index)
}

// ReadJSON loads a report.json previously written by WriteJSON.
func ReadJSON(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &index, nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// atomicWriteJSON writes to a temp file in the same directory and renames it,
// so readers never observe a partial report.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	return atomicWrite(path, data)
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
