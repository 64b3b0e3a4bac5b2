package executor

import (
	"context"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/dag"
	"github.com/seqsim/gridrunner/internal/sweep"
	"github.com/zclconf/go-cty/cty"
)

// instanceOutput holds an instance's output along with its index, so outputs
// can be ordered before they are exposed to the HCL context.
type instanceOutput struct {
	index int
	value cty.Value
}

// buildEvalContext creates the HCL evaluation context for a node. It exposes
// the outputs of every completed step under `step.<type>.<name>` and, for the
// node itself, the per-run `each.*` and `run.*` variables.
func (e *Executor) buildEvalContext(ctx context.Context, node *dag.Node) *hcl.EvalContext {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Building HCL evaluation context.", "node", node.ID())
	vars := make(map[string]cty.Value)

	// map[runner_type] -> map[instance_name] -> []instanceOutput
	stepOutputsByRunner := make(map[string]map[string][]instanceOutput)

	// Collect outputs from every successfully completed step in the graph for
	// a consistent, global view of the run state.
	for _, graphNode := range e.graph.Nodes {
		if graphNode.Type != dag.StepNode || graphNode.GetState() != dag.Done {
			continue
		}
		output, ok := graphNode.Output.(cty.Value)
		if !ok || output.IsNull() {
			continue
		}

		runnerType := graphNode.StepConfig.RunnerType
		instanceName := graphNode.StepConfig.Name
		index := graphNode.Address().Index

		if _, ok := stepOutputsByRunner[runnerType]; !ok {
			stepOutputsByRunner[runnerType] = make(map[string][]instanceOutput)
		}

		wrapped := cty.ObjectVal(map[string]cty.Value{"output": output})
		stepOutputsByRunner[runnerType][instanceName] = append(
			stepOutputsByRunner[runnerType][instanceName],
			instanceOutput{index: index, value: wrapped},
		)
	}

	// Assemble the final `step` variable. A step with several run instances
	// appears as a list ordered by index; a singular step appears as a bare
	// object.
	finalStepOutputs := make(map[string]cty.Value)
	for runnerType, instancesMap := range stepOutputsByRunner {
		runnerMap := make(map[string]cty.Value)
		for instanceName, outputs := range instancesMap {
			if len(outputs) == 0 {
				continue
			}
			sort.Slice(outputs, func(i, j int) bool {
				return outputs[i].index < outputs[j].index
			})

			if e.instanceTotal(runnerType, instanceName) > 1 {
				outputList := make([]cty.Value, len(outputs))
				for i, out := range outputs {
					outputList[i] = out.value
				}
				runnerMap[instanceName] = cty.TupleVal(outputList)
			} else {
				runnerMap[instanceName] = outputs[0].value
			}
		}
		if len(runnerMap) > 0 {
			finalStepOutputs[runnerType] = cty.ObjectVal(runnerMap)
		}
	}
	vars["step"] = cty.ObjectVal(finalStepOutputs)

	if node.Type == dag.StepNode && node.Instance != nil {
		for name, val := range sweep.ContextVariables(*node.Instance, node.ID()) {
			vars[name] = val
		}
	}

	logger.Debug("Finished building HCL evaluation context.", "node", node.ID())
	return &hcl.EvalContext{Variables: vars}
}

// instanceTotal reports how many run instances a step expanded into.
func (e *Executor) instanceTotal(runnerType, name string) int {
	return len(e.graph.InstancesOf(runnerType, name))
}
