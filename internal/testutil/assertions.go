package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/seqsim/gridrunner/internal/ledger"
	"github.com/stretchr/testify/require"
)

// AssertStepRan checks the log output within a HarnessResult to confirm that a
// specific run instance has completed. It abstracts the underlying node ID
// format, making tests more resilient to internal refactoring.
func AssertStepRan(t *testing.T, result *HarnessResult, runnerType, stepName string) {
	t.Helper()

	expectedLogSubstring := fmt.Sprintf("step=step.%s.%s[0]", runnerType, stepName)

	require.True(t,
		strings.Contains(result.LogOutput, expectedLogSubstring),
		"expected log output for step '%s.%s[0]' was not found in logs", runnerType, stepName,
	)
}

// AssertRunOutcome checks the attempt ledger for the newest outcome recorded
// against a run ID.
func AssertRunOutcome(t *testing.T, result *HarnessResult, runID string, outcome ledger.Outcome) {
	t.Helper()

	require.NotNil(t, result.App, "harness result has no app; startup failed?")
	attempts, err := result.App.Ledger().History(context.Background(), runID)
	require.NoError(t, err, "reading ledger history for run %q", runID)
	require.NotEmpty(t, attempts, "no attempt recorded for run %q", runID)
	require.Equal(t, outcome, attempts[len(attempts)-1].Outcome, "unexpected outcome for run %q", runID)
}
