package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "state", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndHistoryRoundTrip(t *testing.T) {
	t.Parallel()

	// Arrange
	l := openTestLedger(t)
	ctx := context.Background()
	started := time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond)
	finished := started.Add(30 * time.Second)

	// Act
	err := l.Record(ctx, Attempt{
		RunID:      "step.exec.fit[0]",
		Outcome:    OutcomeCompleted,
		ExitCode:   0,
		Artifact:   "_output/run0/results.pkl",
		LeaseID:    "lease-1",
		Attempts:   2,
		Duration:   30 * time.Second,
		StartedAt:  started,
		FinishedAt: finished,
	})

	// Assert
	require.NoError(t, err)

	history, err := l.History(ctx, "step.exec.fit[0]")
	require.NoError(t, err)
	require.Len(t, history, 1)

	got := history[0]
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, OutcomeCompleted, got.Outcome)
	assert.Equal(t, "_output/run0/results.pkl", got.Artifact)
	assert.Equal(t, uint(2), got.Attempts)
	assert.Equal(t, 30*time.Second, got.Duration)
	assert.True(t, got.StartedAt.Equal(started))
	assert.True(t, got.FinishedAt.Equal(finished))
}

func TestLatestKeepsMostRecentPerRun(t *testing.T) {
	t.Parallel()

	// Arrange
	l := openTestLedger(t)
	ctx := context.Background()
	base := time.Now().UTC()

	record := func(runID string, outcome Outcome, at time.Time) {
		require.NoError(t, l.Record(ctx, Attempt{
			RunID:      runID,
			Outcome:    outcome,
			StartedAt:  at.Add(-time.Second),
			FinishedAt: at,
		}))
	}

	record("step.exec.fit[0]", OutcomeFailed, base.Add(-2*time.Hour))
	record("step.exec.fit[0]", OutcomeCompleted, base.Add(-time.Hour))
	record("step.exec.fit[1]", OutcomeSkipped, base)

	// Act
	latest, err := l.Latest(ctx)

	// Assert
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, OutcomeCompleted, latest["step.exec.fit[0]"].Outcome)
	assert.Equal(t, OutcomeSkipped, latest["step.exec.fit[1]"].Outcome)
}

func TestHistoryOrdersSubsecondAttempts(t *testing.T) {
	t.Parallel()

	// Arrange: 120ms trims to two fraction digits under RFC3339Nano, which
	// would string-sort after the nine-digit 123.456789ms and flip the order.
	l := openTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	earlier := base.Add(120 * time.Millisecond)
	later := base.Add(123456789 * time.Nanosecond)

	record := func(outcome Outcome, at time.Time) {
		require.NoError(t, l.Record(ctx, Attempt{
			RunID:      "step.exec.fit[0]",
			Outcome:    outcome,
			StartedAt:  at,
			FinishedAt: at,
		}))
	}
	record(OutcomeFailed, earlier)
	record(OutcomeCompleted, later)

	// Act
	history, err := l.History(ctx, "step.exec.fit[0]")
	latest, latestErr := l.Latest(ctx)

	// Assert
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, OutcomeFailed, history[0].Outcome)
	assert.Equal(t, OutcomeCompleted, history[1].Outcome)

	require.NoError(t, latestErr)
	assert.Equal(t, OutcomeCompleted, latest["step.exec.fit[0]"].Outcome)
}

func TestTotalsGroupsByOutcome(t *testing.T) {
	t.Parallel()

	// Arrange
	l := openTestLedger(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, outcome := range []Outcome{OutcomeCompleted, OutcomeCompleted, OutcomeSkipped, OutcomeFailed} {
		require.NoError(t, l.Record(ctx, Attempt{
			RunID:      "step.exec.fit[0]",
			Outcome:    outcome,
			StartedAt:  now.Add(time.Duration(i) * time.Second),
			FinishedAt: now.Add(time.Duration(i+1) * time.Second),
		}))
	}

	// Act
	totals, err := l.Totals(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, totals[OutcomeCompleted])
	assert.Equal(t, 1, totals[OutcomeSkipped])
	assert.Equal(t, 1, totals[OutcomeFailed])
}

func TestOpenCreatesParentDirectories(t *testing.T) {
	t.Parallel()

	// Act
	l, err := Open(filepath.Join(t.TempDir(), "deeply", "nested", "ledger.db"))

	// Assert
	require.NoError(t, err)
	require.NoError(t, l.Close())
}
