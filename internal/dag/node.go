package dag

import (
	"sync"
	"sync/atomic"

	"github.com/seqsim/gridrunner/internal/config"
	"github.com/seqsim/gridrunner/internal/runid"
	"github.com/seqsim/gridrunner/internal/sweep"
)

// NodeType distinguishes between different kinds of nodes in the graph.
type NodeType int

const (
	// StepNode represents a node that executes one run of a runner.
	StepNode NodeType = iota
	// ResourceNode represents a node that manages a stateful resource.
	ResourceNode
)

// State represents the execution state of a node in the graph.
type State int32

const (
	// Pending indicates the node is waiting for its dependencies to complete.
	Pending State = iota
	// Running indicates the node is currently being executed by a worker.
	Running
	// Done indicates the node has completed execution successfully.
	Done
	// Failed indicates the node has failed execution or was skipped.
	Failed
)

// Node is a single vertex in the execution graph: one run instance of a step,
// or one stateful resource.
type Node struct {
	// addr is the structured identity of the node. Step nodes are always
	// indexed, resource nodes never are.
	addr runid.Address
	// id caches addr.String() since it is used on every scheduling decision.
	id string

	// Name is the human-readable instance name from the configuration.
	Name string
	// Type distinguishes between steps and resources.
	Type NodeType

	// StepConfig holds the configuration for a step node. It is nil for resources.
	StepConfig *config.Step
	// ResourceConfig holds the configuration for a resource node. It is nil for steps.
	ResourceConfig *config.Resource
	// Instance carries the sweep parameters assigned to this run. It is nil
	// for resource nodes.
	Instance *sweep.Instance

	// Deps holds the set of nodes this node depends on (predecessors).
	Deps map[string]*Node
	// Dependents holds the set of nodes that depend on this node (successors).
	Dependents map[string]*Node

	// Error stores any error that occurred during the node's execution.
	Error error
	// Output stores the result of the node's execution for downstream nodes.
	Output any

	// depCount is an atomic counter for unmet dependencies, used by the scheduler.
	depCount atomic.Int32
	// descendantCount counts a resource's step dependents, used to destroy the
	// resource as soon as its last consumer finishes.
	descendantCount atomic.Int32
	// state is the node's current execution state, managed atomically.
	state atomic.Int32
	// destroyOnce ensures a node's cleanup logic runs exactly once.
	destroyOnce sync.Once
	// skipOnce ensures a node is marked as skipped exactly once.
	skipOnce sync.Once
}

func newStepNode(addr runid.Address, step *config.Step, inst sweep.Instance) *Node {
	return &Node{
		addr:       addr,
		id:         addr.String(),
		Name:       step.Name,
		Type:       StepNode,
		StepConfig: step,
		Instance:   &inst,
		Deps:       make(map[string]*Node),
		Dependents: make(map[string]*Node),
	}
}

func newResourceNode(addr runid.Address, res *config.Resource) *Node {
	return &Node{
		addr:           addr,
		id:             addr.String(),
		Name:           res.Name,
		Type:           ResourceNode,
		ResourceConfig: res,
		Deps:           make(map[string]*Node),
		Dependents:     make(map[string]*Node),
	}
}

// ID returns the canonical string form of the node's address.
func (n *Node) ID() string {
	return n.id
}

// Address returns the structured address of the node.
func (n *Node) Address() runid.Address {
	return n.addr
}

// SetInitialCounters primes the scheduling counters from the linked topology.
// It must be called once, after linking and before execution.
func (n *Node) SetInitialCounters() {
	n.depCount.Store(int32(len(n.Deps)))
	if n.Type == ResourceNode {
		steps := 0
		for _, dependent := range n.Dependents {
			if dependent.Type == StepNode {
				steps++
			}
		}
		n.descendantCount.Store(int32(steps))
	}
}

// DepCount atomically returns the current number of unmet dependencies.
func (n *Node) DepCount() int32 {
	return n.depCount.Load()
}

// DecrementDepCount atomically decrements the dependency counter and returns
// the new value.
func (n *Node) DecrementDepCount() int32 {
	return n.depCount.Add(-1)
}

// DecrementDescendantCount atomically decrements the resource descendant counter.
func (n *Node) DecrementDescendantCount() int32 {
	return n.descendantCount.Add(-1)
}

// SetState atomically sets the node's execution state.
func (n *Node) SetState(s State) {
	n.state.Store(int32(s))
}

// GetState atomically retrieves the node's execution state.
func (n *Node) GetState() State {
	return State(n.state.Load())
}

// Destroy executes the given cleanup function exactly once, making it safe to
// call from multiple goroutines.
func (n *Node) Destroy(f func()) {
	n.destroyOnce.Do(f)
}

// Skip marks a node as failed and decrements the WaitGroup counter. It uses a
// sync.Once to guarantee this happens only once, returning true if this call
// was the one that performed the skip.
func (n *Node) Skip(err error, wg *sync.WaitGroup) bool {
	var wasSkipped bool
	n.skipOnce.Do(func() {
		n.SetState(Failed)
		n.Error = err
		wg.Done()
		wasSkipped = true
	})
	return wasSkipped
}
