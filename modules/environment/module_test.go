package environment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestPrefixFiltersVariables(t *testing.T) {
	// Not parallel: manipulates the process environment.
	t.Setenv("GRIDTEST_ALPHA", "one")
	t.Setenv("GRIDTEST_BETA", "two")
	t.Setenv("OTHER_GAMMA", "three")

	// Act
	output, err := OnRunEnvironment(context.Background(), &Deps{}, &Input{Prefix: "GRIDTEST_"})

	// Assert
	require.NoError(t, err)
	all := output.GetAttr("all")
	assert.Equal(t, cty.StringVal("one"), all.Index(cty.StringVal("GRIDTEST_ALPHA")))
	assert.Equal(t, cty.StringVal("two"), all.Index(cty.StringVal("GRIDTEST_BETA")))
	assert.False(t, all.Type().IsObjectType())
	assert.Equal(t, 2, all.LengthInt())
}

func TestUnmatchedPrefixYieldsEmptyMap(t *testing.T) {
	// Act
	output, err := OnRunEnvironment(context.Background(), &Deps{}, &Input{Prefix: "GRIDTEST_NO_SUCH_PREFIX_"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 0, output.GetAttr("all").LengthInt())
}
