package breaker

import "errors"

// ErrRejected is returned by Call/CallWith when the breaker is Open, or
// HalfOpen with a probe already in flight. The wrapped operation is never
// invoked; callers should not retry immediately.
var ErrRejected = errors.New("breaker: call rejected")
