// Package sweep expands a step's parameter matrix into concrete run
// instances and renders `{param}` templates against each instance's values.
//
// Expansion is deterministic: parameter names are sorted, and the cartesian
// product is walked row-major with the last parameter varying fastest. The
// instance order therefore never changes between invocations, which keeps
// run identifiers stable across re-runs of the same grid.
package sweep
