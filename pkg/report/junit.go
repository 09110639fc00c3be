package report

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"strings"
)

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Name     string       `xml:"name,attr"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Time     string       `xml:"time,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string      `xml:"name,attr"`
	ID        string      `xml:"id,attr,omitempty"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Skipped   int         `xml:"skipped,attr"`
	Time      string      `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr"`
	Cases     []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *struct{}     `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// WriteJUnit writes the index as a JUnit XML file at path.
// Each scenario becomes one testcase; the step log goes to system-out.
func WriteJUnit(path string, index *Index) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}

	data, err := MarshalJUnit(index)
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

// MarshalJUnit renders the index as JUnit XML.
func MarshalJUnit(index *Index) ([]byte, error) {
	suite := junitSuite{
		Name:      "flowdriver",
		ID:        index.RunID,
		Tests:     index.Summary.Total,
		Failures:  index.Summary.Failed,
		Skipped:   index.Summary.Skipped,
		Time:      seconds(index.Duration),
		Timestamp: index.StartTime.UTC().Format("2006-01-02T15:04:05"),
	}

	for _, sc := range index.Scenarios {
		tc := junitCase{
			Name:      sc.Name,
			Classname: classname(sc.SourceFile),
			Time:      seconds(sc.Duration),
			SystemOut: stepLog(sc.Steps),
		}
		switch sc.Status {
		case StatusFailed:
			f := &junitFailure{Type: "unknown"}
			if sc.Error != nil {
				f.Message = sc.Error.Message
				f.Type = sc.Error.Type
			}
			if sc.FailedStep != nil && *sc.FailedStep < len(sc.Steps) {
				f.Body = fmt.Sprintf("step %d: %s", *sc.FailedStep+1, sc.Steps[*sc.FailedStep].Label)
			}
			tc.Failure = f
		case StatusSkipped:
			tc.Skipped = &struct{}{}
		}
		suite.Cases = append(suite.Cases, tc)
	}

	doc := junitSuites{
		Name:     "flowdriver",
		Tests:    suite.Tests,
		Failures: suite.Failures,
		Skipped:  suite.Skipped,
		Time:     suite.Time,
		Suites:   []junitSuite{suite},
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal junit report: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

func seconds(ms int64) string {
	return fmt.Sprintf("%.3f", float64(ms)/1000)
}

// classname turns "flows/login.yaml" into "flows.login".
func classname(file string) string {
	if file == "" {
		return "flowdriver"
	}
	name := strings.TrimSuffix(filepath.ToSlash(file), filepath.Ext(file))
	name = strings.TrimPrefix(name, "./")
	return strings.ReplaceAll(name, "/", ".")
}

func stepLog(steps []StepEntry) string {
	var sb strings.Builder
	for _, s := range steps {
		fmt.Fprintf(&sb, "[%s] %d. %s\n", s.Status, s.Index+1, s.Label)
	}
	return sb.String()
}
