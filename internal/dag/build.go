package dag

import (
	"context"
	"fmt"

	"github.com/seqsim/gridrunner/internal/config"
	"github.com/seqsim/gridrunner/internal/ctxlog"
	"github.com/seqsim/gridrunner/internal/registry"
	"github.com/seqsim/gridrunner/internal/runid"
	"github.com/seqsim/gridrunner/internal/sweep"
)

// Build constructs a complete, validated dependency graph from a config model.
func Build(ctx context.Context, model *config.Model, r *registry.Registry) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.")
	graph := newGraph()

	// First pass: expand sweeps and create all nodes.
	if err := createNodes(ctx, model.Grid, graph); err != nil {
		return nil, err
	}
	logger.Debug("Build: Node creation complete.", "node_count", len(graph.Nodes))

	// Second pass: link dependencies.
	if err := linkNodes(ctx, model, graph, r); err != nil {
		return nil, err
	}
	logger.Debug("Build: Node linking complete.")

	// Third pass: initialize counters.
	for _, node := range graph.Nodes {
		node.SetInitialCounters()
	}
	logger.Debug("Build: Counter initialization complete.")

	if err := graph.detectCycles(); err != nil {
		return nil, fmt.Errorf("error validating dependency graph: %w", err)
	}
	logger.Debug("Build: Cycle detection passed.")

	logger.Debug("Build: Graph construction successful.")
	return graph, nil
}

// createNodes performs the first pass of graph creation. Every step is
// expanded into its run instances; each instance becomes one node.
func createNodes(ctx context.Context, grid *config.Grid, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)
	for _, s := range grid.Steps {
		instances, err := sweep.Expand(s, nil)
		if err != nil {
			return fmt.Errorf("expanding step '%s.%s': %w", s.RunnerType, s.Name, err)
		}
		if len(instances) == 0 {
			logger.Warn("Step expands to zero run instances, nothing to schedule for it.", "step", s.RunnerType+"."+s.Name)
			continue
		}
		group := s.RunnerType + "." + s.Name
		if _, exists := graph.stepInstances[group]; exists {
			return fmt.Errorf("duplicate step definition '%s'", group)
		}
		for _, inst := range instances {
			addr := runid.NewStep(s.RunnerType, s.Name).WithIndex(inst.Index)
			node := newStepNode(addr, s, inst)
			graph.Nodes[node.ID()] = node
			graph.stepInstances[group] = append(graph.stepInstances[group], node)
		}
		logger.Debug("Expanded step into run instances.", "step", group, "instances", len(instances))
	}
	for _, res := range grid.Resources {
		addr := runid.NewResource(res.AssetType, res.Name)
		if _, exists := graph.Nodes[addr.String()]; exists {
			return fmt.Errorf("duplicate resource definition '%s'", addr.String())
		}
		graph.Nodes[addr.String()] = newResourceNode(addr, res)
	}
	return nil
}

// linkNodes performs the second pass, establishing dependency links from both
// explicit depends_on entries and the variables referenced in expressions.
func linkNodes(ctx context.Context, model *config.Model, graph *Graph, r *registry.Registry) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting node linking pass.")

	for _, node := range graph.Nodes {
		var dependsOn []string
		exprs := collectExpressions(node)

		if node.Type == StepNode {
			dependsOn = node.StepConfig.DependsOn
		} else {
			dependsOn = node.ResourceConfig.DependsOn
		}

		if err := linkExplicitDeps(ctx, node, dependsOn, graph); err != nil {
			return err
		}
		for _, expr := range exprs {
			if err := linkImplicitDeps(ctx, node, expr, graph, r); err != nil {
				return err
			}
		}
	}
	logger.Debug("Finished node linking pass.")
	return nil
}
