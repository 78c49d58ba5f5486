package rate

import "errors"

// ErrRedisUnavailable wraps failures talking to the shared counter store.
var ErrRedisUnavailable = errors.New("redis unavailable")
