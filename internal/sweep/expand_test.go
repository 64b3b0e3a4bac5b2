package sweep

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/seqsim/gridrunner/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// parseExpr turns an HCL expression literal into an hcl.Expression.
func parseExpr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.InitialPos)
	require.False(t, diags.HasErrors(), diags.Error())
	return expr
}

func TestExpandWithoutMatrixYieldsSingleInstance(t *testing.T) {
	t.Parallel()

	// Arrange
	step := &config.Step{Name: "solo"}

	// Act
	instances, err := Expand(step, nil)

	// Assert
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, 0, instances[0].Index)
	assert.Empty(t, instances[0].Params)
}

func TestExpandMatrixIsRowMajorAndDeterministic(t *testing.T) {
	t.Parallel()

	// Arrange
	step := &config.Step{
		Name: "fit",
		Matrix: map[string]hcl.Expression{
			"model_seed": parseExpr(t, "[0, 1]"),
			"data_seed":  parseExpr(t, "[10, 20, 30]"),
		},
	}

	// Act
	instances, err := Expand(step, nil)

	// Assert
	require.NoError(t, err)
	require.Len(t, instances, 6)

	// data_seed sorts before model_seed, so model_seed varies fastest.
	first := instances[0].Params
	second := instances[1].Params
	assert.Equal(t, cty.NumberIntVal(10), first["data_seed"])
	assert.Equal(t, cty.NumberIntVal(0), first["model_seed"])
	assert.Equal(t, cty.NumberIntVal(10), second["data_seed"])
	assert.Equal(t, cty.NumberIntVal(1), second["model_seed"])

	last := instances[5].Params
	assert.Equal(t, cty.NumberIntVal(30), last["data_seed"])
	assert.Equal(t, cty.NumberIntVal(1), last["model_seed"])

	for i, inst := range instances {
		assert.Equal(t, i, inst.Index)
	}
}

func TestExpandCountReplicatesCombos(t *testing.T) {
	t.Parallel()

	// Arrange
	count := 2
	step := &config.Step{
		Name:  "fit",
		Count: &count,
		Matrix: map[string]hcl.Expression{
			"seed": parseExpr(t, "[1, 2]"),
		},
	}

	// Act
	instances, err := Expand(step, nil)

	// Assert
	require.NoError(t, err)
	assert.Len(t, instances, 4)
}

func TestExpandRejectsNegativeCount(t *testing.T) {
	t.Parallel()

	count := -1
	step := &config.Step{Name: "fit", Count: &count}

	_, err := Expand(step, nil)

	assert.ErrorContains(t, err, "cannot be negative")
}

func TestExpandRejectsScalarMatrixParameter(t *testing.T) {
	t.Parallel()

	step := &config.Step{
		Name: "fit",
		Matrix: map[string]hcl.Expression{
			"seed": parseExpr(t, "42"),
		},
	}

	_, err := Expand(step, nil)

	assert.ErrorContains(t, err, "must be a list")
}

func TestExpandRejectsEmptyMatrixParameter(t *testing.T) {
	t.Parallel()

	step := &config.Step{
		Name: "fit",
		Matrix: map[string]hcl.Expression{
			"seed": parseExpr(t, "[]"),
		},
	}

	_, err := Expand(step, nil)

	assert.ErrorContains(t, err, "has no values")
}

func TestContextVariablesExposeEachAndRun(t *testing.T) {
	t.Parallel()

	// Arrange
	inst := Instance{
		Index:  3,
		Params: map[string]cty.Value{"seed": cty.NumberIntVal(7)},
	}

	// Act
	vars := ContextVariables(inst, "step.exec.fit[3]")

	// Assert
	require.Contains(t, vars, "each")
	require.Contains(t, vars, "run")
	assert.Equal(t, cty.NumberIntVal(7), vars["each"].GetAttr("seed"))
	assert.Equal(t, cty.NumberIntVal(3), vars["run"].GetAttr("index"))
	assert.Equal(t, cty.StringVal("step.exec.fit[3]"), vars["run"].GetAttr("id"))
}
