package model

import "errors"

// ErrModelUnavailable indicates resolution failed: the artifact is neither
// cached nor fetchable. Fatal to the request that triggered it, not to the
// engine.
var ErrModelUnavailable = errors.New("model unavailable")
