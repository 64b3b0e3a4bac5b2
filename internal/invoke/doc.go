// Package invoke runs the external simulation command for one run: it
// assembles the argv, validates the working directory before the child ever
// starts, tees child output into the per-run log file, and surfaces the
// child's exit status as a typed error so callers can propagate it.
package invoke
