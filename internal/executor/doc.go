// Package executor runs a built execution graph with a pool of workers.
//
// Scheduling is counter-based: each node carries the number of unmet
// dependencies, workers pick up nodes whose counter reaches zero, and a
// node's completion decrements the counter of every dependent. A failing
// node cancels the run context and transitively skips its dependents, but
// already-running nodes are left to finish so their results are recorded.
//
// Resources are created on demand and destroyed as soon as their last
// consuming step finishes; anything still alive at the end of the run is
// torn down by a LIFO cleanup stack.
package executor
