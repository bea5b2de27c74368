// Package dispatch implements the farm's coordination protocol over the
// shared state store: task claiming, completion and failure handling, job
// progress recounting, and node liveness. Every operation is scoped to a
// single store transaction; there is no scheduler process and no in-memory
// coordination state, so any node or management process may invoke these
// functions concurrently.
package dispatch

import "errors"

// ErrNoTask is returned by Claim when no eligible task exists for the node.
// Callers sleep for their poll interval and try again.
var ErrNoTask = errors.New("dispatch: no eligible task")

// errConflict signals that another node changed a candidate task between
// selection and claim. It never escapes Claim; the selection is re-run.
var errConflict = errors.New("dispatch: claim conflict")

// maxClaimRetries bounds how many times a single Claim call re-runs candidate
// selection after losing a race. Past that the poll loop retries anyway.
const maxClaimRetries = 3
