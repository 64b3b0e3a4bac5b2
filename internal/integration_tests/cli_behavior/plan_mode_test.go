package integration_tests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/seqsim/gridrunner/internal/app"
	"github.com/seqsim/gridrunner/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCLI_PlanMode_PredictsWithoutExecuting checks the dry run: the plan
// table classifies every run and no child process is ever launched.
func TestCLI_PlanMode_PredictsWithoutExecuting(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	outputRoot := t.TempDir()
	sideEffect := filepath.Join(t.TempDir(), "ran.txt")

	// Seed one artifact so the plan predicts a skip for that run only.
	existing := filepath.Join(outputRoot, "_output", "m1", "results.pkl")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("done"), 0o644))

	gridHCL := fmt.Sprintf(`
		step "exec" "scan" {
			matrix {
				model_seed = [1, 2]
			}
			arguments {
				command  = "sh"
				args     = ["-c", "echo ran >> \"$SIDE\"", "sim"]
				artifact = "_output/m{model_seed}/results.pkl"
				env      = { SIDE = %q }
			}
		}
	`, sideEffect)

	// --- Act ---
	result := testutil.RunGridTestWithContext(context.Background(), t, map[string]string{"main.hcl": gridHCL},
		&app.Config{OutputRoot: outputRoot, PlanOnly: true})

	// --- Assert ---
	require.NoError(t, result.Err, "plan failed; logs:\n%s", result.LogOutput)

	assert.Contains(t, result.Output, "step.exec.scan[0]")
	assert.Contains(t, result.Output, "step.exec.scan[1]")
	assert.Contains(t, result.Output, "skip")
	assert.Contains(t, result.Output, "2 runs: 1 run, 1 skip")

	assert.NoFileExists(t, sideEffect, "plan mode must not launch commands")

	latest, err := result.App.Ledger().Latest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, latest, "plan mode must not record attempts")
}

// TestCLI_PlanMode_OverwriteReclassifiesSkips checks that the overwrite
// switch turns predicted skips into forced runs.
func TestCLI_PlanMode_OverwriteReclassifiesSkips(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	outputRoot := t.TempDir()
	existing := filepath.Join(outputRoot, "done.pkl")
	require.NoError(t, os.WriteFile(existing, []byte("done"), 0o644))

	gridHCL := `
		step "exec" "fit" {
			arguments {
				command  = "true"
				artifact = "done.pkl"
			}
		}
	`

	// --- Act ---
	result := testutil.RunGridTestWithContext(context.Background(), t, map[string]string{"main.hcl": gridHCL},
		&app.Config{OutputRoot: outputRoot, PlanOnly: true, Overwrite: true})

	// --- Assert ---
	require.NoError(t, result.Err)
	assert.Contains(t, result.Output, "run (overwrite)")
	assert.NotContains(t, result.Output, "1 skip")
}
