// Package lease serializes run execution across processes with exclusive
// lease files keyed by run identifier.
//
// The artifact existence check and the child invocation are not atomic; two
// orchestrators racing on the same run could both see "absent" and invoke
// twice. Holding the run's lease between the check and the invocation closes
// that window: the file is created with O_CREATE|O_EXCL, so exactly one
// acquirer wins, and the loser learns who holds it.
//
// A heartbeat goroutine refreshes the lease file's mtime while the run is in
// flight. A lease whose mtime is older than the TTL belonged to a dead
// process and may be broken and re-acquired.
package lease
