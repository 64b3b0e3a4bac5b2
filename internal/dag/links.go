package dag

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/registry"
	"github.com/seqsim/gridrunner/internal/runid"
	"github.com/zclconf/go-cty/cty"
)

// collectExpressions gathers every expression on a node whose variables can
// imply a dependency. Matrix expressions are excluded: they are static by
// definition and evaluated during expansion.
func collectExpressions(node *Node) []hcl.Expression {
	var exprs []hcl.Expression
	if node.Type == StepNode {
		for _, expr := range node.StepConfig.Arguments {
			exprs = append(exprs, expr)
		}
		for _, expr := range node.StepConfig.Uses {
			exprs = append(exprs, expr)
		}
	} else {
		for _, expr := range node.ResourceConfig.Arguments {
			exprs = append(exprs, expr)
		}
	}
	return exprs
}

// linkExplicitDeps resolves dependencies from a `depends_on` list. A reference
// without an index to an expanded step fans in on every run instance of that
// step.
func linkExplicitDeps(ctx context.Context, node *Node, dependsOn []string, graph *Graph) error {
	baseLogger := ctxlog.FromContext(ctx)

	for _, raw := range dependsOn {
		logger := baseLogger.With("node_id", node.ID(), "depends_on", raw)

		ref, err := runid.ParseRef(raw)
		if err != nil {
			return fmt.Errorf("in '%s': %w", node.ID(), err)
		}

		// Resources are not instanced, so try them first.
		resourceID := runid.NewResource(ref.Type, ref.Name).String()
		if depNode, found := graph.Nodes[resourceID]; found {
			logger.Debug("Resolved as dependency on resource.", "to_node_id", depNode.ID())
			link(node, depNode)
			continue
		}

		instances := graph.InstancesOf(ref.Type, ref.Name)
		if len(instances) == 0 {
			return fmt.Errorf("node '%s' depends on non-existent identifier '%s'", node.ID(), raw)
		}

		if ref.Index == runid.NoIndex {
			logger.Debug("Fanning in on all run instances.", "step", ref.Type+"."+ref.Name, "instances", len(instances))
			for _, depNode := range instances {
				link(node, depNode)
			}
			continue
		}

		depID := runid.NewStep(ref.Type, ref.Name).WithIndex(ref.Index).String()
		depNode, found := graph.Nodes[depID]
		if !found {
			return fmt.Errorf("node '%s' depends on non-existent instance '%s'", node.ID(), raw)
		}
		logger.Debug("Linking explicit dependency.", "to_node_id", depNode.ID())
		link(node, depNode)
	}
	return nil
}

// stepRef holds information extracted from an HCL traversal of the form
// `step.<runner_type>.<instance_name>`, optionally followed by an index.
type stepRef struct {
	RunnerType string
	Name       string
	Index      int
}

// parseStepTraversal analyzes an HCL traversal to extract a step reference.
func parseStepTraversal(traversal hcl.Traversal) (*stepRef, bool) {
	if len(traversal) < 3 || traversal.RootName() != "step" {
		return nil, false
	}

	runnerAttr, runnerOk := traversal[1].(hcl.TraverseAttr)
	nameAttr, nameOk := traversal[2].(hcl.TraverseAttr)
	if !runnerOk || !nameOk {
		return nil, false
	}

	index := runid.NoIndex
	if len(traversal) > 3 {
		if indexer, ok := traversal[3].(hcl.TraverseIndex); ok {
			if indexer.Key.Type() == cty.Number {
				num := indexer.Key.AsBigFloat()
				if num.IsInt() {
					val, _ := num.Int64()
					index = int(val)
				}
			}
		}
	}

	return &stepRef{RunnerType: runnerAttr.Name, Name: nameAttr.Name, Index: index}, true
}

// linkImplicitDeps parses an expression's variable traversals to create
// dependency links. As with explicit references, an unindexed reference to an
// expanded step depends on every instance of it.
func linkImplicitDeps(ctx context.Context, node *Node, expr hcl.Expression, graph *Graph, r *registry.Registry) error {
	baseLogger := ctxlog.FromContext(ctx)

	for _, traversal := range expr.Variables() {
		logger := baseLogger.With("node_id", node.ID(), "traversal", formatTraversal(traversal))

		if ref, ok := parseStepTraversal(traversal); ok {
			instances := graph.InstancesOf(ref.RunnerType, ref.Name)
			if len(instances) == 0 {
				logger.Debug("Traversal refers to an unknown step, ignoring as dependency.")
				continue
			}

			var targets []*Node
			if ref.Index == runid.NoIndex {
				targets = instances
			} else {
				depID := runid.NewStep(ref.RunnerType, ref.Name).WithIndex(ref.Index).String()
				depNode, found := graph.Nodes[depID]
				if !found {
					return fmt.Errorf("in '%s': referenced step instance '%s' does not exist", node.ID(), depID)
				}
				targets = []*Node{depNode}
			}

			if err := validateOutputReference(traversal, ref, r); err != nil {
				return fmt.Errorf("in '%s': %w", node.ID(), err)
			}

			for _, depNode := range targets {
				logger.Debug("Linking implicit dependency.", "to", depNode.ID())
				link(node, depNode)
			}
			continue
		}

		if len(traversal) >= 3 && traversal.RootName() == "resource" {
			typeAttr, typeOk := traversal[1].(hcl.TraverseAttr)
			nameAttr, nameOk := traversal[2].(hcl.TraverseAttr)
			if typeOk && nameOk {
				depID := runid.NewResource(typeAttr.Name, nameAttr.Name).String()
				if depNode, ok := graph.Nodes[depID]; ok {
					logger.Debug("Linking implicit dependency.", "to", depID)
					link(node, depNode)
				}
			}
		}
	}
	return nil
}

// validateOutputReference checks that a traversal reaching into a step's
// output names an output the runner's manifest actually declares.
func validateOutputReference(traversal hcl.Traversal, ref *stepRef, r *registry.Registry) error {
	runnerDef, ok := r.DefinitionRegistry[ref.RunnerType]
	if !ok {
		return fmt.Errorf("unknown runner type '%s'", ref.RunnerType)
	}

	// Walk past the name and optional index to find `.output.<name>`.
	rest := traversal[3:]
	if len(rest) > 0 {
		if _, isIndex := rest[0].(hcl.TraverseIndex); isIndex {
			rest = rest[1:]
		}
	}
	if len(rest) < 2 {
		return nil
	}
	wrapperAttr, ok := rest[0].(hcl.TraverseAttr)
	if !ok || wrapperAttr.Name != "output" {
		return nil
	}
	outputAttr, ok := rest[1].(hcl.TraverseAttr)
	if !ok {
		return nil
	}

	if _, declared := runnerDef.Outputs[outputAttr.Name]; !declared {
		return fmt.Errorf("reference to undeclared output %q on step '%s.%s'", outputAttr.Name, ref.RunnerType, ref.Name)
	}
	return nil
}

// formatTraversal converts an hcl.Traversal to a human-readable string for logging.
func formatTraversal(t hcl.Traversal) string {
	var sb strings.Builder
	for i, part := range t {
		switch p := part.(type) {
		case hcl.TraverseRoot:
			sb.WriteString(p.Name)
		case hcl.TraverseAttr:
			sb.WriteRune('.')
			sb.WriteString(p.Name)
		case hcl.TraverseIndex:
			sb.WriteRune('[')
			if p.Key.Type() == cty.String {
				sb.WriteString(fmt.Sprintf("%q", p.Key.AsString()))
			} else if p.Key.Type() == cty.Number {
				sb.WriteString(p.Key.AsBigFloat().Text('f', -1))
			} else {
				sb.WriteString("...")
			}
			sb.WriteRune(']')
		default:
			if i > 0 {
				sb.WriteRune('.')
			}
			sb.WriteString("?")
		}
	}
	return sb.String()
}
