package sweep

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/seqsim/gridrunner/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// Instance is one concrete run produced by expanding a step. Params holds the
// matrix values assigned to this run; Index is the run's position in the
// deterministic expansion order.
type Instance struct {
	Index  int
	Params map[string]cty.Value
}

// Expand evaluates a step's matrix and count and returns the ordered list of
// run instances. A step with neither matrix nor count yields exactly one
// instance with no parameters.
func Expand(step *config.Step, evalCtx *hcl.EvalContext) ([]Instance, error) {
	axes, err := evaluateMatrix(step, evalCtx)
	if err != nil {
		return nil, err
	}

	count := 1
	if step.Count != nil {
		count = *step.Count
		if count < 0 {
			return nil, fmt.Errorf("count for step '%s' cannot be negative, got %d", step.Name, count)
		}
	}

	combos := product(axes)
	instances := make([]Instance, 0, len(combos)*count)
	for _, combo := range combos {
		for c := 0; c < count; c++ {
			instances = append(instances, Instance{
				Index:  len(instances),
				Params: combo,
			})
		}
	}
	return instances, nil
}

// axis is one matrix parameter and its ordered values.
type axis struct {
	name   string
	values []cty.Value
}

// evaluateMatrix resolves every matrix attribute to a list of values, sorted
// by parameter name for deterministic expansion.
func evaluateMatrix(step *config.Step, evalCtx *hcl.EvalContext) ([]axis, error) {
	if len(step.Matrix) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(step.Matrix))
	for name := range step.Matrix {
		names = append(names, name)
	}
	sort.Strings(names)

	axes := make([]axis, 0, len(names))
	for _, name := range names {
		val, diags := step.Matrix[name].Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluating matrix parameter '%s' of step '%s': %w", name, step.Name, diags)
		}
		if !val.CanIterateElements() {
			return nil, fmt.Errorf("matrix parameter '%s' of step '%s' must be a list, got %s", name, step.Name, val.Type().FriendlyName())
		}

		var values []cty.Value
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			values = append(values, v)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("matrix parameter '%s' of step '%s' has no values", name, step.Name)
		}
		axes = append(axes, axis{name: name, values: values})
	}
	return axes, nil
}

// product walks the cartesian product of the axes row-major, so the last
// (alphabetically) parameter varies fastest.
func product(axes []axis) []map[string]cty.Value {
	if len(axes) == 0 {
		return []map[string]cty.Value{nil}
	}

	total := 1
	for _, ax := range axes {
		total *= len(ax.values)
	}

	combos := make([]map[string]cty.Value, 0, total)
	indices := make([]int, len(axes))
	for {
		combo := make(map[string]cty.Value, len(axes))
		for i, ax := range axes {
			combo[ax.name] = ax.values[indices[i]]
		}
		combos = append(combos, combo)

		// Advance the odometer; carry from the rightmost axis.
		pos := len(axes) - 1
		for pos >= 0 {
			indices[pos]++
			if indices[pos] < len(axes[pos].values) {
				break
			}
			indices[pos] = 0
			pos--
		}
		if pos < 0 {
			return combos
		}
	}
}

// ContextVariables returns the per-instance variables injected into the HCL
// evaluation context of a run: `each.<param>` for every matrix value plus
// `run.index` and `run.id`.
func ContextVariables(inst Instance, id string) map[string]cty.Value {
	vars := map[string]cty.Value{
		"run": cty.ObjectVal(map[string]cty.Value{
			"index": cty.NumberIntVal(int64(inst.Index)),
			"id":    cty.StringVal(id),
		}),
	}
	if len(inst.Params) > 0 {
		vars["each"] = cty.ObjectVal(inst.Params)
	}
	return vars
}
