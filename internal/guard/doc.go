/*
Package guard decides, for one run, whether the external simulation command
executes at all.

The sequence is fixed:

 1. resolve the run's artifact path and report it, unconditionally;
 2. skip with a notice when the artifact exists and overwrite is off;
 3. otherwise take the run's lease, re-check under it, invoke the command,
    and verify the artifact was produced;
 4. record the attempt in the ledger and release the lease.

A skipped run is a success. A failed child fails the run with its exit code
intact so the process exit status can mirror it.
*/
package guard
