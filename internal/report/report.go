// Package report produces the operator-facing views of a sweep: the dry-run
// plan, the post-hoc summary and the live artifact watcher.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/seqsim/gridrunner/internal/artifact"
	"github.com/seqsim/gridrunner/internal/dag"
	"github.com/seqsim/gridrunner/internal/sweep"
	"github.com/zclconf/go-cty/cty"
)

// Plan actions.
const (
	ActionRun       = "run"
	ActionSkip      = "skip"
	ActionOverwrite = "run (overwrite)"
	// ActionUnknown marks runs whose artifact path depends on another step's
	// output and cannot be predicted before execution.
	ActionUnknown = "run (artifact computed at run time)"
)

// PlanRow describes what the orchestrator would do with one run.
type PlanRow struct {
	RunID    string
	Artifact string
	Exists   bool
	Action   string
}

// Plan predicts the action for every run in the graph without executing
// anything. A run is predicted to skip when its artifact argument evaluates
// statically, renders against the run's parameters and already exists.
func Plan(graph *dag.Graph, store *artifact.Store, overwrite bool) ([]PlanRow, error) {
	var rows []PlanRow
	for _, node := range graph.SortedNodes() {
		if node.Type != dag.StepNode {
			continue
		}

		row := PlanRow{RunID: node.ID(), Action: ActionRun}

		path, ok := predictArtifact(node)
		if ok && path != "" {
			resolved := store.Resolve(path)
			exists, err := store.Exists(path)
			if err != nil {
				return nil, fmt.Errorf("planning %s: %w", node.ID(), err)
			}
			row.Artifact = resolved
			row.Exists = exists
			switch {
			case overwrite:
				row.Action = ActionOverwrite
			case exists:
				row.Action = ActionSkip
			}
		} else if !ok {
			row.Action = ActionUnknown
		}

		rows = append(rows, row)
	}
	return rows, nil
}

// predictArtifact statically evaluates a step's artifact argument for one run
// instance. The second return is false when the expression needs values that
// only exist during execution.
func predictArtifact(node *dag.Node) (string, bool) {
	expr, declared := node.StepConfig.Arguments["artifact"]
	if !declared {
		return "", true
	}

	evalCtx := &hcl.EvalContext{Variables: map[string]cty.Value{}}
	if node.Instance != nil {
		evalCtx.Variables = sweep.ContextVariables(*node.Instance, node.ID())
	}

	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() || val.IsNull() || val.Type() != cty.String {
		return "", false
	}

	params := map[string]cty.Value{}
	if node.Instance != nil {
		params = node.Instance.Params
	}
	rendered, err := sweep.Render(val.AsString(), params)
	if err != nil {
		return "", false
	}
	return rendered, true
}

// WritePlan renders the plan as an aligned text table.
func WritePlan(w io.Writer, rows []PlanRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No runs in the grid.")
		return
	}

	idWidth := len("RUN")
	actionWidth := len("ACTION")
	for _, row := range rows {
		if len(row.RunID) > idWidth {
			idWidth = len(row.RunID)
		}
		if len(row.Action) > actionWidth {
			actionWidth = len(row.Action)
		}
	}

	fmt.Fprintf(w, "%-*s  %-*s  %s\n", idWidth, "RUN", actionWidth, "ACTION", "ARTIFACT")
	for _, row := range rows {
		artifactCol := row.Artifact
		if artifactCol == "" {
			artifactCol = "-"
		}
		fmt.Fprintf(w, "%-*s  %-*s  %s\n", idWidth, row.RunID, actionWidth, row.Action, artifactCol)
	}

	counts := map[string]int{}
	for _, row := range rows {
		counts[row.Action]++
	}
	actions := make([]string, 0, len(counts))
	for action := range counts {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	parts := make([]string, 0, len(actions))
	for _, action := range actions {
		parts = append(parts, fmt.Sprintf("%d %s", counts[action], action))
	}
	fmt.Fprintf(w, "\n%d runs: %s\n", len(rows), strings.Join(parts, ", "))
}
