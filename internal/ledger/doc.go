// Package ledger persists one row per run attempt in a local SQLite
// database. The ledger is the orchestrator's memory across invocations: the
// summary command reads it, and operators can query it directly with any
// sqlite client when a sweep misbehaves.
package ledger
