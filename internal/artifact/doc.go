// Package artifact answers the one question the skip decision hangs on:
// does a run's result artifact exist yet. Paths resolve against a configured
// root, and all access goes through an afero filesystem so tests can run
// against an in-memory one.
package artifact
