package report

import (
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devicelab-dev/flowdriver/pkg/core"
	"github.com/devicelab-dev/flowdriver/pkg/flow"
)

func sampleResults() []*core.ScenarioResult {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	passed := &core.ScenarioResult{
		Name:       "purchase",
		FilePath:   "flows/purchase.yaml",
		Tags:       []string{"smoke"},
		Status:     core.ScenarioPassed,
		StartTime:  start,
		Duration:   1500 * time.Millisecond,
		FailedStep: -1,
		Steps: []core.StepResult{
			{Index: 0, Action: "click", Step: flow.Step{Action: flow.ActionClick, Locator: flow.ByText("Login")}, Status: core.StatusPassed, Duration: time.Second},
		},
	}
	cause := core.ErrTextMismatch.WithMessage("text mismatch")
	failed := &core.ScenarioResult{
		Name:       "locked-out",
		FilePath:   "flows/locked.yaml",
		Status:     core.ScenarioFailed,
		StartTime:  start,
		Duration:   2 * time.Second,
		FailedStep: 1,
		Error:      cause.Error(),
		Cause:      cause,
		Steps: []core.StepResult{
			{Index: 0, Action: "click", Step: flow.Step{Action: flow.ActionClick, Locator: flow.ByText("Login"), Label: "tap login"}, Status: core.StatusPassed},
			{Index: 1, Action: "assertDisplayed", Step: flow.Step{Action: flow.ActionAssertDisplayed, Label: "check error"}, Status: core.StatusFailed, Category: core.ErrCategoryAssertion, Error: cause.Error()},
			{Index: 2, Action: "click", Step: flow.Step{Action: flow.ActionClick, Label: "never"}, Status: core.StatusSkipped},
		},
	}
	notStarted := &core.ScenarioResult{
		Name:       "checkout",
		FilePath:   "flows/checkout.yaml",
		Status:     core.ScenarioNotStarted,
		FailedStep: -1,
	}
	return []*core.ScenarioResult{passed, failed, notStarted}
}

func TestBuild(t *testing.T) {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	index := Build(sampleResults(), BuilderConfig{
		RunID:     "run-1",
		StartTime: start,
		Duration:  4 * time.Second,
		AppID:     "com.example.app",
		Driver:    "mock",
	})

	if index.Status != StatusFailed {
		t.Errorf("expected status failed, got %s", index.Status)
	}
	if index.Summary != (Summary{Total: 3, Passed: 1, Failed: 1, Skipped: 1}) {
		t.Errorf("unexpected summary: %+v", index.Summary)
	}
	if !index.EndTime.Equal(start.Add(4 * time.Second)) {
		t.Errorf("unexpected end time: %v", index.EndTime)
	}
	if index.Duration != 4000 {
		t.Errorf("expected duration 4000ms, got %d", index.Duration)
	}

	failed := index.Scenarios[1]
	if failed.FailedStep == nil || *failed.FailedStep != 1 {
		t.Fatalf("expected failedStep 1, got %v", failed.FailedStep)
	}
	if failed.Error == nil || failed.Error.Type != "assertion" {
		t.Errorf("expected assertion error, got %+v", failed.Error)
	}
	if failed.Steps[1].Label != "check error" {
		t.Errorf("expected label from step, got %q", failed.Steps[1].Label)
	}
	if failed.Steps[1].Error == nil {
		t.Error("expected error on failed step")
	}
	if failed.Steps[2].Status != "skipped" {
		t.Errorf("expected skipped step, got %s", failed.Steps[2].Status)
	}

	if index.Scenarios[0].FailedStep != nil {
		t.Error("passed scenario should have no failedStep")
	}
	if index.Scenarios[2].Status != StatusSkipped {
		t.Errorf("not started scenario should be skipped, got %s", index.Scenarios[2].Status)
	}
}

func TestBuild_AllPassed(t *testing.T) {
	index := Build(sampleResults()[:1], BuilderConfig{RunID: "run-2"})
	if index.Status != StatusPassed {
		t.Errorf("expected passed, got %s", index.Status)
	}
	if index.StartTime.IsZero() {
		t.Error("expected start time to default to now")
	}
}

func TestBuild_UnknownErrorType(t *testing.T) {
	r := &core.ScenarioResult{
		Name:       "x",
		Status:     core.ScenarioFailed,
		FailedStep: -1,
		Error:      "boom",
		Cause:      errors.New("boom"),
	}
	index := Build([]*core.ScenarioResult{r, nil}, BuilderConfig{})
	if index.Summary.Total != 1 {
		t.Errorf("nil results should be ignored, total=%d", index.Summary.Total)
	}
	if got := index.Scenarios[0].Error.Type; got != "unknown" {
		t.Errorf("expected unknown type, got %q", got)
	}
	if index.Scenarios[0].FailedStep != nil {
		t.Error("expected no failed step index")
	}
}

func TestWriteJSON_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	index := Build(sampleResults(), BuilderConfig{RunID: "run-3"})

	if err := WriteJSON(dir, index); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	got, err := ReadJSON(filepath.Join(dir, JSONFile))
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if got.RunID != "run-3" || got.Summary != index.Summary {
		t.Errorf("unexpected report: %+v", got)
	}
	if len(got.Scenarios) != 3 {
		t.Errorf("expected 3 scenarios, got %d", len(got.Scenarios))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only report.json, found %d entries", len(entries))
	}
}

func TestReadJSON_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	if err := os.WriteFile(path, []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadJSON(path); err == nil {
		t.Error("expected parse error")
	}
	if _, err := ReadJSON(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not exist, got %v", err)
	}
}

func TestMarshalJUnit(t *testing.T) {
	index := Build(sampleResults(), BuilderConfig{RunID: "run-4", Duration: 3500 * time.Millisecond})

	data, err := MarshalJUnit(index)
	if err != nil {
		t.Fatalf("MarshalJUnit failed: %v", err)
	}
	if !strings.HasPrefix(string(data), xml.Header) {
		t.Error("expected xml header")
	}

	var doc junitSuites
	if err := xml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid xml: %v", err)
	}
	if doc.Tests != 3 || doc.Failures != 1 || doc.Skipped != 1 {
		t.Errorf("unexpected counts: tests=%d failures=%d skipped=%d", doc.Tests, doc.Failures, doc.Skipped)
	}
	if doc.Time != "3.500" {
		t.Errorf("expected time 3.500, got %s", doc.Time)
	}

	cases := doc.Suites[0].Cases
	if cases[0].Classname != "flows.purchase" {
		t.Errorf("unexpected classname %q", cases[0].Classname)
	}
	if cases[0].Failure != nil || cases[0].Skipped != nil {
		t.Error("passed case should have no failure or skipped")
	}
	f := cases[1].Failure
	if f == nil {
		t.Fatal("expected failure on second case")
	}
	if f.Type != "assertion" || f.Body != "step 2: check error" {
		t.Errorf("unexpected failure: %+v", f)
	}
	if !strings.Contains(cases[1].SystemOut, "[skipped] 3. never") {
		t.Errorf("unexpected system-out: %q", cases[1].SystemOut)
	}
	if cases[2].Skipped == nil {
		t.Error("expected skipped element on third case")
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	if err := Write(dir, Build(sampleResults(), BuilderConfig{})); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	for _, name := range []string{JSONFile, JUnitFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
}

func TestClassname(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "flowdriver"},
		{"login.yaml", "login"},
		{"./flows/a/login.yml", "flows.a.login"},
		{"builtin/purchase.yaml", "builtin.purchase"},
	}
	for _, tt := range tests {
		if got := classname(tt.in); got != tt.want {
			t.Errorf("classname(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
