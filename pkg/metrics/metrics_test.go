package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveStep(t *testing.T) {
	r := New()
	r.ObserveStep("click", "passed", 120*time.Millisecond)
	r.ObserveStep("click", "passed", 80*time.Millisecond)
	r.ObserveStep("click", "failed", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.steps.WithLabelValues("click", "passed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.steps.WithLabelValues("click", "failed")))
}

func TestObserveScenarioAndWait(t *testing.T) {
	r := New()
	r.ObserveScenario("locked-out-login", "passed", 3*time.Second)
	r.ObserveWait(true, 4, 800*time.Millisecond)
	r.ObserveWait(false, 50, 10*time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.scenarios.WithLabelValues("passed")))
	assert.Equal(t, 54.0, testutil.ToFloat64(r.waitPolls))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveStep("click", "passed", time.Second)
		r.ObserveScenario("x", "failed", time.Second)
		r.ObserveWait(false, 1, time.Second)
	})
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveStep("assertDisplayed", "passed", 200*time.Millisecond)

	path := filepath.Join(t.TempDir(), "flowdriver.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `flowdriver_steps_total{action="assertDisplayed",status="passed"} 1`))
}
