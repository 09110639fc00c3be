package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/devicelab-dev/flowdriver/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func results(statuses ...core.ScenarioStatus) []*core.ScenarioResult {
	names := []string{"locked-out-login", "purchase", "checkout"}
	out := make([]*core.ScenarioResult, 0, len(statuses))
	for i, s := range statuses {
		r := &core.ScenarioResult{
			Name:       names[i%len(names)],
			FilePath:   names[i%len(names)] + ".yaml",
			Status:     s,
			StartTime:  time.UnixMilli(1_700_000_000_000 + int64(i)),
			Duration:   250 * time.Millisecond,
			FailedStep: -1,
		}
		if s == core.ScenarioFailed {
			r.FailedStep = 4
			r.Cause = core.ErrTextMismatch
			r.Error = core.ErrTextMismatch.Error()
		}
		out = append(out, r)
	}
	return out
}

func TestRecordAndRuns(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := Run{ID: "run-1", StartTime: time.UnixMilli(1_700_000_000_000), Duration: 2 * time.Second, Driver: "mock"}
	second := Run{ID: "run-2", StartTime: first.StartTime.Add(time.Hour), Duration: time.Second, Driver: "appium"}

	require.NoError(t, store.Record(ctx, first, results(core.ScenarioPassed, core.ScenarioFailed)))
	require.NoError(t, store.Record(ctx, second, results(core.ScenarioPassed, core.ScenarioPassed, core.ScenarioNotStarted)))

	runs, err := store.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "appium", runs[0].Driver)
	assert.Equal(t, 3, runs[0].Total)
	assert.Equal(t, 2, runs[0].Passed)
	assert.Equal(t, 1, runs[0].Skipped)
	assert.True(t, runs[0].StartTime.Equal(second.StartTime))

	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, 1, runs[1].Failed)
	assert.Equal(t, 2*time.Second, runs[1].Duration)

	limited, err := store.Runs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecord_DuplicateRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	run := Run{ID: "dup", StartTime: time.Now()}

	require.NoError(t, store.Record(ctx, run, results(core.ScenarioPassed)))
	err := store.Record(ctx, run, results(core.ScenarioPassed))
	require.ErrorIs(t, err, ErrRunExists)

	runs, err := store.Runs(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestScenarioHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, store.Record(ctx, Run{ID: "a", StartTime: base}, results(core.ScenarioFailed)))
	require.NoError(t, store.Record(ctx, Run{ID: "b", StartTime: base.Add(time.Minute)}, results(core.ScenarioPassed)))

	recs, err := store.ScenarioHistory(ctx, "locked-out-login", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "b", recs[0].RunID)
	assert.Equal(t, "passed", recs[0].Status)
	assert.Equal(t, -1, recs[0].FailedStep)

	assert.Equal(t, "a", recs[1].RunID)
	assert.Equal(t, "failed", recs[1].Status)
	assert.Equal(t, 4, recs[1].FailedStep)
	assert.Equal(t, "assertion", recs[1].ErrorType)
	assert.Equal(t, 250*time.Millisecond, recs[1].Duration)

	none, err := store.ScenarioHistory(ctx, "unknown", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStats(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, Run{ID: "1", StartTime: time.Now()}, results(core.ScenarioPassed, core.ScenarioFailed)))
	require.NoError(t, store.Record(ctx, Run{ID: "2", StartTime: time.Now()}, results(core.ScenarioFailed, core.ScenarioPassed, core.ScenarioNotStarted)))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "locked-out-login", stats[0].Name)
	assert.Equal(t, 2, stats[0].Runs)
	assert.Equal(t, 1, stats[0].Passed)
	assert.InDelta(t, 0.5, stats[0].PassRate(), 0.001)

	assert.Equal(t, "purchase", stats[1].Name)
	assert.Equal(t, 1, stats[1].Failed)
}

func TestStats_PassRateEmpty(t *testing.T) {
	assert.Zero(t, Stats{}.PassRate())
}

func TestOpen_Memory(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Record(context.Background(), Run{ID: "m", StartTime: time.Now()}, nil))
	runs, err := store.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecord_CancelledContext(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Record(ctx, Run{ID: "c", StartTime: time.Now()}, results(core.ScenarioPassed))
	require.Error(t, err)
}
