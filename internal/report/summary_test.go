package report

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/seqsim/gridrunner/internal/artifact"
	"github.com/seqsim/gridrunner/internal/ledger"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	led, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = led.Close() })
	return led
}

func TestSummarizeJoinsLedgerWithArtifacts(t *testing.T) {
	t.Parallel()

	// Arrange: run 0 completed and its artifact is on disk, run 1 failed.
	ctx := quietContext()
	led := newLedger(t)
	require.NoError(t, led.Record(ctx, ledger.Attempt{
		RunID:      "step.exec.fit[0]",
		Outcome:    ledger.OutcomeCompleted,
		Artifact:   "/data/_output/m0/results.pkl",
		Attempts:   1,
		Duration:   3 * time.Second,
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
	}))
	require.NoError(t, led.Record(ctx, ledger.Attempt{
		RunID:      "step.exec.fit[1]",
		Outcome:    ledger.OutcomeFailed,
		ExitCode:   9,
		Artifact:   "/data/_output/m1/results.pkl",
		Attempts:   2,
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
	}))

	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/data/_output/m0/results.pkl", []byte("12345"), 0o644))
	store := artifact.NewStore(afs, "/data")

	// Act
	summary, err := Summarize(ctx, led, store)

	// Assert
	require.NoError(t, err)
	require.Len(t, summary.Runs, 2)

	first := summary.Runs[0]
	assert.Equal(t, "step.exec.fit[0]", first.RunID)
	assert.Equal(t, "completed", first.Outcome)
	assert.True(t, first.ArtifactPresent)
	assert.Equal(t, int64(5), first.ArtifactBytes)
	assert.Equal(t, int64(3000), first.DurationMs)

	second := summary.Runs[1]
	assert.Equal(t, "failed", second.Outcome)
	assert.Equal(t, 9, second.ExitCode)
	assert.False(t, second.ArtifactPresent)

	assert.Equal(t, map[string]int{"completed": 1, "failed": 1}, summary.Totals)
}

func TestSummarizeUsesLatestAttemptPerRun(t *testing.T) {
	t.Parallel()

	// Arrange: the run failed once, then completed.
	ctx := quietContext()
	led := newLedger(t)
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, led.Record(ctx, ledger.Attempt{
		RunID: "step.exec.fit[0]", Outcome: ledger.OutcomeFailed, ExitCode: 1,
		StartedAt: base, FinishedAt: base.Add(time.Minute),
	}))
	require.NoError(t, led.Record(ctx, ledger.Attempt{
		RunID: "step.exec.fit[0]", Outcome: ledger.OutcomeCompleted,
		StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Minute),
	}))

	// Act
	summary, err := Summarize(ctx, led, artifact.NewStore(afero.NewMemMapFs(), ""))

	// Assert
	require.NoError(t, err)
	require.Len(t, summary.Runs, 1)
	assert.Equal(t, "completed", summary.Runs[0].Outcome)
}

func TestWriteJSONRoundTrips(t *testing.T) {
	t.Parallel()

	// Arrange
	summary := &Summary{
		GeneratedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Totals:      map[string]int{"skipped": 1},
		Runs:        []SummaryRow{{RunID: "step.exec.fit[0]", Outcome: "skipped"}},
	}
	out := &bytes.Buffer{}

	// Act
	require.NoError(t, WriteJSON(out, summary))

	// Assert
	var decoded Summary
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, summary.Totals, decoded.Totals)
	require.Len(t, decoded.Runs, 1)
	assert.Equal(t, "step.exec.fit[0]", decoded.Runs[0].RunID)
}
