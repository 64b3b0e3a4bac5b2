package sweep

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestRenderSubstitutesParameters(t *testing.T) {
	t.Parallel()

	// Arrange
	params := map[string]cty.Value{
		"outdir":     cty.StringVal("model_seed0/5"),
		"model_seed": cty.NumberIntVal(0),
		"variance":   cty.NumberFloatVal(0.05),
	}

	// Act
	got, err := Render("simulation_distance_v_loglik/_output/{outdir}/distance_v_loglik_results.pkl", params)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "simulation_distance_v_loglik/_output/model_seed0/5/distance_v_loglik_results.pkl", got)
}

func TestRenderValueForms(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		val      cty.Value
		expected string
	}{
		{name: "string verbatim", val: cty.StringVal("run_a"), expected: "run_a"},
		{name: "integer number", val: cty.NumberIntVal(2000), expected: "2000"},
		{name: "fractional number", val: cty.NumberFloatVal(0.05), expected: "0.05"},
		{name: "bool", val: cty.True, expected: "true"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := Render("{v}", map[string]cty.Value{"v": tc.val})

			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestRenderUnknownPlaceholderFails(t *testing.T) {
	t.Parallel()

	_, err := Render("_output/{outdri}/results.pkl", map[string]cty.Value{
		"outdir": cty.StringVal("x"),
	})

	assert.ErrorContains(t, err, `unknown parameter "outdri"`)
}

func TestRenderAllPreservesOrder(t *testing.T) {
	t.Parallel()

	// Arrange
	params := map[string]cty.Value{
		"model_seed": cty.NumberIntVal(4),
		"data_seed":  cty.NumberIntVal(9),
	}

	// Act
	got, err := RenderAll([]string{"--model-seed", "{model_seed}", "--data-seed", "{data_seed}"}, params)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"--model-seed", "4", "--data-seed", "9"}, got)
}

func TestPlaceholdersDeduplicatesInOrder(t *testing.T) {
	t.Parallel()

	got := Placeholders("{outdir}/{model_seed}/{outdir}/{data_seed}")

	assert.Equal(t, []string{"outdir", "model_seed", "data_seed"}, got)
}

func TestFormatValueRejectsCollections(t *testing.T) {
	t.Parallel()

	_, err := FormatValue(cty.ListVal([]cty.Value{cty.StringVal("a")}))

	assert.Error(t, err)
}
