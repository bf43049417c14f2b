package store

import "errors"

// ErrStateInconsistency names a violation of the monotonic-time invariants on
// indicator and alert state. No store method or scheduler pass returns it: a
// write that moves lastUpdatedUnix backward is not checked for or refused.
var ErrStateInconsistency = errors.New("store: indicator state invariant violated")
