// Package lock provides keyed mutual exclusion with bounded waits.  Local
// serializes callers inside one process; Redis serializes callers across
// every instance sharing a Redis server.
package lock

import "errors"

// ErrNotAcquired is returned when a key could not be locked before the
// caller's context was done.
var ErrNotAcquired = errors.New("lock not acquired")
