package integration_tests

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/seqsim/gridrunner/internal/app"
	"github.com/seqsim/gridrunner/internal/report"
	"github.com/seqsim/gridrunner/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCLI_SummaryMode_ReportsRecordedRuns executes a small sweep, then asks a
// second application instance for the JSON summary of the same state.
func TestCLI_SummaryMode_ReportsRecordedRuns(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	stateDir := filepath.Join(t.TempDir(), "state")
	outputRoot := t.TempDir()

	gridHCL := fmt.Sprintf(`
		step "exec" "fit" {
			arguments {
				command  = "sh"
				args     = ["-c", "mkdir -p \"$ROOT\" && echo fit > \"$ROOT/fit.pkl\""]
				artifact = "fit.pkl"
				env      = { ROOT = %q }
			}
		}
	`, outputRoot)
	files := map[string]string{"main.hcl": gridHCL}

	sweepRun := testutil.RunGridTestWithContext(context.Background(), t, files,
		&app.Config{StateDir: stateDir, OutputRoot: outputRoot})
	require.NoError(t, sweepRun.Err, "sweep failed; logs:\n%s", sweepRun.LogOutput)

	// --- Act ---
	summaryRun := testutil.RunGridTestWithContext(context.Background(), t, files,
		&app.Config{StateDir: stateDir, OutputRoot: outputRoot, Summary: true})

	// --- Assert ---
	require.NoError(t, summaryRun.Err, "summary failed; logs:\n%s", summaryRun.LogOutput)

	var summary report.Summary
	require.NoError(t, json.Unmarshal([]byte(summaryRun.Output), &summary), "summary output must be valid JSON:\n%s", summaryRun.Output)

	assert.Equal(t, 1, summary.Totals["completed"])
	require.Len(t, summary.Runs, 1)

	run := summary.Runs[0]
	assert.Equal(t, "step.exec.fit[0]", run.RunID)
	assert.Equal(t, "completed", run.Outcome)
	assert.True(t, run.ArtifactPresent, "the summary should see the artifact on disk")
	assert.Greater(t, run.ArtifactBytes, int64(0))
}
