/*
Package runid provides a structured, type-safe representation for run
identifiers within the system.

A full identifier names one node of the execution graph and has the form
`kind.type.name[index]`, e.g. `step.exec.distance_v_loglik[3]` or
`resource.scratch_dir.work`. The identifier doubles as the key for the run's
lease file and its ledger rows, so all formatting and parsing is centralized
here.
*/
package runid
