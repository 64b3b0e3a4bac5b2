package hcl

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// testContext returns a context carrying a logger that discards output.
func testContext(t *testing.T) context.Context {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	return ctxlog.WithLogger(context.Background(), logger)
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestLoadGridWithMatrixStep(t *testing.T) {
	t.Parallel()

	// Arrange
	dir := writeFiles(t, map[string]string{
		"grid.hcl": `
step "exec" "distance_v_loglik" {
  arguments {
    command  = "python3 run_estimator.py"
    workdir  = "/app/simulations"
    artifact = "_output/{outdir}/results.pkl"
  }
  matrix {
    model_seed = [0, 1]
    data_seed  = [0, 1, 2]
  }
  depends_on = ["step.exec.generate"]
}
`,
	})

	// Act
	model, converter, err := NewLoader().Load(testContext(t), dir)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, converter)
	require.Len(t, model.Grid.Steps, 1)

	step := model.Grid.Steps[0]
	assert.Equal(t, "exec", step.RunnerType)
	assert.Equal(t, "distance_v_loglik", step.Name)
	assert.Equal(t, []string{"step.exec.generate"}, step.DependsOn)
	assert.Contains(t, step.Arguments, "command")
	assert.Contains(t, step.Matrix, "model_seed")
	assert.Contains(t, step.Matrix, "data_seed")
	assert.Nil(t, step.Count)
}

func TestLoadRunnerManifest(t *testing.T) {
	t.Parallel()

	// Arrange
	dir := writeFiles(t, map[string]string{
		"manifest.hcl": `
runner "exec" {
  description = "Guarded external command invocation."

  lifecycle {
    on_run = "OnRunExec"
  }

  input "command" {
    type = string
  }

  input "overwrite" {
    type    = bool
    default = false
  }

  output "artifact" {
    type = string
  }
}
`,
	})

	// Act
	model, _, err := NewLoader().Load(testContext(t), dir)

	// Assert
	require.NoError(t, err)
	require.Contains(t, model.Runners, "exec")

	def := model.Runners["exec"]
	assert.Equal(t, "OnRunExec", def.Lifecycle.OnRun)

	require.Contains(t, def.Inputs, "overwrite")
	overwrite := def.Inputs["overwrite"]
	assert.True(t, overwrite.Optional)
	require.NotNil(t, overwrite.Default)
	assert.Equal(t, cty.False, *overwrite.Default)
	assert.Equal(t, cty.Bool, overwrite.Type)

	require.Contains(t, def.Inputs, "command")
	assert.False(t, def.Inputs["command"].Optional)
	assert.Equal(t, cty.String, def.Inputs["command"].Type)
}

func TestLoadSkipsMissingPaths(t *testing.T) {
	t.Parallel()

	// Act
	model, _, err := NewLoader().Load(testContext(t), filepath.Join(t.TempDir(), "does-not-exist"))

	// Assert
	require.NoError(t, err)
	assert.Empty(t, model.Grid.Steps)
}

func TestLoadRejectsMalformedHCL(t *testing.T) {
	t.Parallel()

	// Arrange
	dir := writeFiles(t, map[string]string{
		"broken.hcl": `step "exec" { this is not hcl`,
	})

	// Act
	_, _, err := NewLoader().Load(testContext(t), dir)

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse HCL file")
}

func TestConverterDecodeBodyAppliesDefaults(t *testing.T) {
	t.Parallel()

	// Arrange
	dir := writeFiles(t, map[string]string{
		"manifest.hcl": `
runner "exec" {
  input "retries" {
    type    = number
    default = 1
  }
}
`,
	})
	ctx := testContext(t)
	model, converter, err := NewLoader().Load(ctx, dir)
	require.NoError(t, err)

	var input struct {
		Retries int `grid:"retries"`
	}

	// Act
	err = converter.DecodeBody(ctx, &input, nil, model.Runners["exec"].Inputs, nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, input.Retries)
}
