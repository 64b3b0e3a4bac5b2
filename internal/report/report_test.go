package report

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/seqsim/gridrunner/internal/artifact"
	"github.com/seqsim/gridrunner/internal/config"
	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/dag"
	"github.com/seqsim/gridrunner/internal/registry"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func quietContext() context.Context {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
	return ctxlog.WithLogger(context.Background(), logger)
}

func expr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	e, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), "parse %q: %s", src, diags.Error())
	return e
}

func buildGraph(t *testing.T, steps []*config.Step) *dag.Graph {
	t.Helper()
	m := &config.Model{
		Runners: make(map[string]*config.RunnerDefinition),
		Assets:  make(map[string]*config.AssetDefinition),
		Grid:    &config.Grid{Steps: steps},
	}
	r := registry.New()
	r.DefinitionRegistry["exec"] = &config.RunnerDefinition{
		Type:      "exec",
		Lifecycle: &config.Lifecycle{OnRun: "OnRunExec"},
		Outputs:   map[string]*config.OutputDefinition{"path": {Name: "path", Type: cty.String}},
	}
	graph, err := dag.Build(quietContext(), m, r)
	require.NoError(t, err)
	return graph
}

func TestPlanPredictsSkipForExistingArtifact(t *testing.T) {
	t.Parallel()

	// Arrange: the artifact for model_seed=1 is already on disk.
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/data/_output/m1/results.pkl", []byte("done"), 0o644))
	store := artifact.NewStore(afs, "/data")

	graph := buildGraph(t, []*config.Step{{
		RunnerType: "exec",
		Name:       "fit",
		Matrix:     map[string]hcl.Expression{"model_seed": expr(t, "[1, 2]")},
		Arguments:  map[string]hcl.Expression{"artifact": expr(t, `"_output/m{model_seed}/results.pkl"`)},
	}})

	// Act
	rows, err := Plan(graph, store, false)

	// Assert
	require.NoError(t, err)
	want := []PlanRow{
		{RunID: "step.exec.fit[0]", Artifact: "/data/_output/m1/results.pkl", Exists: true, Action: ActionSkip},
		{RunID: "step.exec.fit[1]", Artifact: "/data/_output/m2/results.pkl", Exists: false, Action: ActionRun},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("plan mismatch (-want +got):\n%s", diff)
	}
}

func TestPlanOverwriteForcesEveryRun(t *testing.T) {
	t.Parallel()

	// Arrange
	afs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(afs, "/data/results.pkl", []byte("done"), 0o644))
	store := artifact.NewStore(afs, "/data")

	graph := buildGraph(t, []*config.Step{{
		RunnerType: "exec",
		Name:       "fit",
		Arguments:  map[string]hcl.Expression{"artifact": expr(t, `"results.pkl"`)},
	}})

	// Act
	rows, err := Plan(graph, store, true)

	// Assert
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ActionOverwrite, rows[0].Action)
	assert.True(t, rows[0].Exists)
}

func TestPlanEvaluatesEachInterpolation(t *testing.T) {
	t.Parallel()

	// Arrange
	store := artifact.NewStore(afero.NewMemMapFs(), "/data")
	graph := buildGraph(t, []*config.Step{{
		RunnerType: "exec",
		Name:       "scan",
		Matrix:     map[string]hcl.Expression{"seed": expr(t, "[5]")},
		Arguments:  map[string]hcl.Expression{"artifact": expr(t, `"_output/run${each.seed}.pkl"`)},
	}})

	// Act
	rows, err := Plan(graph, store, false)

	// Assert
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/data/_output/run5.pkl", rows[0].Artifact)
}

func TestPlanMarksArtifactsComputedAtRunTime(t *testing.T) {
	t.Parallel()

	// Arrange: the artifact path depends on another step's output.
	store := artifact.NewStore(afero.NewMemMapFs(), "/data")
	graph := buildGraph(t, []*config.Step{
		{RunnerType: "exec", Name: "emit"},
		{
			RunnerType: "exec",
			Name:       "fit",
			Arguments:  map[string]hcl.Expression{"artifact": expr(t, `step.exec.emit.output.path`)},
		},
	})

	// Act
	rows, err := Plan(graph, store, false)

	// Assert
	require.NoError(t, err)
	byID := map[string]PlanRow{}
	for _, row := range rows {
		byID[row.RunID] = row
	}
	assert.Equal(t, ActionUnknown, byID["step.exec.fit[0]"].Action)
	assert.Equal(t, ActionRun, byID["step.exec.emit[0]"].Action, "steps without an artifact argument always run")
}

func TestWritePlanRendersTable(t *testing.T) {
	t.Parallel()

	// Arrange
	rows := []PlanRow{
		{RunID: "step.exec.fit[0]", Artifact: "/data/a.pkl", Exists: true, Action: ActionSkip},
		{RunID: "step.exec.fit[1]", Artifact: "/data/b.pkl", Action: ActionRun},
	}
	out := &bytes.Buffer{}

	// Act
	WritePlan(out, rows)

	// Assert
	text := out.String()
	assert.Contains(t, text, "RUN")
	assert.Contains(t, text, "ARTIFACT")
	assert.Contains(t, text, "step.exec.fit[1]")
	assert.Contains(t, text, "2 runs: 1 run, 1 skip")
}

func TestWritePlanEmptyGrid(t *testing.T) {
	t.Parallel()

	// Act
	out := &bytes.Buffer{}
	WritePlan(out, nil)

	// Assert
	assert.Contains(t, out.String(), "No runs in the grid.")
}
