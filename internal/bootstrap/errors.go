package bootstrap

import "errors"

// ErrBootstrapFailure wraps any step failure in the new/old-token flows. The
// caller response is always to disable the token with the wrapped reason
// string rather than leave a half-initialized token active.
var ErrBootstrapFailure = errors.New("bootstrap: token addition failed")
