// Package environment provides a runner that exposes the orchestrator's
// environment variables to the grid, typically to forward scheduler or
// cluster settings into simulation runs.
package environment

import (
	"context"
	"os"
	"strings"

	"github.com/seqsim/gridrunner/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the environment runner.
type Input struct {
	Prefix string `grid:"prefix"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// OnRunEnvironment is the handler for the 'environment' runner.
func OnRunEnvironment(ctx context.Context, deps *Deps, input *Input) (cty.Value, error) {
	vars := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) != 2 {
			continue
		}
		if input.Prefix != "" && !strings.HasPrefix(pair[0], input.Prefix) {
			continue
		}
		vars[pair[0]] = cty.StringVal(pair[1])
	}

	all := cty.MapValEmpty(cty.String)
	if len(vars) > 0 {
		all = cty.MapVal(vars)
	}
	return cty.ObjectVal(map[string]cty.Value{"all": all}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunEnvironment", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       OnRunEnvironment,
	})
}
