package dag

import (
	"fmt"
	"sort"
)

// Graph is the complete, validated execution plan: every run instance and
// resource as a node, with dependency links between them.
type Graph struct {
	// Nodes provides ID-based lookup for any node in the graph.
	Nodes map[string]*Node

	// stepInstances groups step nodes by "type.name", ordered by instance
	// index. Unindexed references resolve against these groups.
	stepInstances map[string][]*Node
}

func newGraph() *Graph {
	return &Graph{
		Nodes:         make(map[string]*Node),
		stepInstances: make(map[string][]*Node),
	}
}

// InstancesOf returns the ordered run instances of the step identified by
// runner type and instance name, or nil if no such step exists.
func (g *Graph) InstancesOf(runnerType, name string) []*Node {
	return g.stepInstances[runnerType+"."+name]
}

// SortedNodes returns all nodes ordered by ID, for deterministic listings.
func (g *Graph) SortedNodes() []*Node {
	nodes := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	return nodes
}

// link records a dependency edge from node to dep, ignoring duplicates.
func link(node, dep *Node) {
	if _, exists := node.Deps[dep.ID()]; exists {
		return
	}
	node.Deps[dep.ID()] = dep
	dep.Dependents[node.ID()] = node
}

// detectCycles checks for circular dependencies in the graph using DFS.
func (g *Graph) detectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(node *Node) error
	visit = func(node *Node) error {
		visiting[node.ID()] = true
		for _, dep := range node.Deps {
			if visiting[dep.ID()] {
				return fmt.Errorf("cycle detected involving '%s'", dep.ID())
			}
			if !visited[dep.ID()] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		delete(visiting, node.ID())
		visited[node.ID()] = true
		return nil
	}

	for _, node := range g.Nodes {
		if !visited[node.ID()] {
			if err := visit(node); err != nil {
				return err
			}
		}
	}
	return nil
}
