// Package dag builds the execution graph for a loaded grid.
//
// Construction happens in three passes. The first pass expands every step's
// matrix and count into concrete run instances and creates one node per
// instance (plus one node per resource). The second pass links nodes from
// explicit `depends_on` references and from the variables used in argument
// expressions. The third pass initializes the scheduling counters consumed by
// the executor. A cycle check validates the result.
//
// Expansion happens at build time so the whole sweep is visible before
// anything runs: a plan can list every run instance, and the scheduler sees
// real nodes instead of placeholders. Matrix and count values must therefore
// be static literals.
package dag
