package integration_tests

import (
	"context"
	"testing"

	"github.com/seqsim/gridrunner/internal/app"
	"github.com/seqsim/gridrunner/internal/ledger"
	"github.com/seqsim/gridrunner/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrorHandling_FailingCommandFailsRun propagates a child's non-zero exit
// through the executor and into the ledger.
func TestErrorHandling_FailingCommandFailsRun(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	gridHCL := `
		step "exec" "fit" {
			arguments {
				command  = "sh"
				args     = ["-c", "exit 3"]
				artifact = "never/created.pkl"
			}
		}
	`

	// --- Act ---
	result := testutil.RunGridTest(t, map[string]string{"main.hcl": gridHCL})

	// --- Assert ---
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "exited with code 3")

	testutil.AssertRunOutcome(t, result, "step.exec.fit[0]", ledger.OutcomeFailed)

	history, err := result.App.Ledger().History(context.Background(), "step.exec.fit[0]")
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, 3, history[len(history)-1].ExitCode)
}

// TestErrorHandling_CompletedRunWithoutArtifactFails covers the lying child:
// exit zero but no result file on disk.
func TestErrorHandling_CompletedRunWithoutArtifactFails(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	gridHCL := `
		step "exec" "fit" {
			arguments {
				command  = "true"
				artifact = "missing/results.pkl"
			}
		}
	`

	// --- Act ---
	result := testutil.RunGridTest(t, map[string]string{"main.hcl": gridHCL})

	// --- Assert ---
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), "left no result")
	testutil.AssertRunOutcome(t, result, "step.exec.fit[0]", ledger.OutcomeFailed)
}

// TestErrorHandling_MissingRequiredArgument rejects a step that omits an
// input with no default.
func TestErrorHandling_MissingRequiredArgument(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	gridHCL := `
		step "exec" "fit" {
			arguments {
				artifact = "out.pkl"
			}
		}
	`

	// --- Act ---
	result := testutil.RunGridTestWithContext(context.Background(), t,
		map[string]string{"main.hcl": gridHCL}, &app.Config{})

	// --- Assert ---
	require.Error(t, result.Err)
	assert.Contains(t, result.Err.Error(), `missing required argument "command"`)
}
