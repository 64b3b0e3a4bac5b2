// Package print provides a runner that writes grid values to the console,
// mainly for inspecting sweep outputs and debugging grid files.
package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package. Out
// defaults to stdout when left nil.
type Module struct {
	Out io.Writer
}

// Input defines the arguments for the print runner.
type Input struct {
	Values map[string]string `grid:"values"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// OnRunPrint is the handler for the 'print' runner's on_run lifecycle event.
func (m *Module) OnRunPrint(ctx context.Context, deps *Deps, input *Input) (cty.Value, error) {
	ctxlog.FromContext(ctx).Debug("Printing values.", "count", len(input.Values))

	w := m.Out
	if w == nil {
		w = os.Stdout
	}

	if len(input.Values) == 0 {
		fmt.Fprintln(w, "      (empty)")
		return cty.NilVal, nil
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(input.Values))
	for k := range input.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(w, "      %s = %q\n", k, input.Values[k])
	}

	return cty.NilVal, nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunPrint", &registry.RegisteredRunner{
		NewInput: func() any { return new(Input) },
		NewDeps:  func() any { return new(Deps) },
		Fn:       m.OnRunPrint,
	})
}
