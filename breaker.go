package breaker

// Outcome is the caller's domain-specific classification of a call
// result, used by CallWith to decide whether the breaker should count it
// as a failure.
type Outcome int

const (
	// Success means the call should not count against the breaker.
	Success Outcome = iota
	// Failure means the call should count toward tripping the breaker.
	Failure
)

// Classifier maps a call's error into an Outcome. It lets a caller treat
// some errors as domain-expected (a 404, a validation error) rather than
// as evidence the downstream dependency is unhealthy.
type Classifier func(err error) Outcome

// DefaultClassifier treats any non-nil error as Failure.
func DefaultClassifier(err error) Outcome {
	if err != nil {
		return Failure
	}
	return Success
}

// CircuitBreaker glues a StateMachine to an Instrument and exposes the
// call-shaped API described in spec.md §4.7. It has no state of its own
// beyond the StateMachine: all the concurrency and transition rules live
// there (see statemachine.go).
type CircuitBreaker struct {
	sm *StateMachine
}

// NewCircuitBreaker returns a breaker in StateClosed, backed by policy
// and clock. A nil instrument is replaced with NoopInstrument.
func NewCircuitBreaker(policy FailurePolicy, clock Clock, instrument Instrument) *CircuitBreaker {
	return &CircuitBreaker{sm: NewStateMachine(policy, clock, instrument)}
}

// Snapshot returns the breaker's current state and pending deadline.
func (cb *CircuitBreaker) Snapshot() Snapshot { return cb.sm.Snapshot() }

// Reset forces the breaker to StateClosed and clears its policy.
func (cb *CircuitBreaker) Reset() { cb.sm.Reset() }

// Call runs f if the breaker currently permits it, treating any non-nil
// error from f as a Failure. It returns ErrRejected without invoking f
// when the breaker is Open or a HalfOpen probe is already in flight.
//
// Call is a free function rather than a method because Go methods
// cannot carry their own type parameters.
func Call[T any](cb *CircuitBreaker, f func() (T, error)) (T, error) {
	return CallWith(cb, DefaultClassifier, f)
}

// CallWith runs f if the breaker currently permits it, classifying f's
// error with classify instead of treating every error as a Failure. A
// nil classify behaves like Call.
func CallWith[T any](cb *CircuitBreaker, classify Classifier, f func() (T, error)) (T, error) {
	if classify == nil {
		classify = DefaultClassifier
	}
	if !cb.sm.IsCallPermitted() {
		var zero T
		return zero, ErrRejected
	}

	v, err := f()
	if classify(err) == Failure {
		cb.sm.OnError()
	} else {
		cb.sm.OnSuccess()
	}
	return v, err
}
