// Package reliability provides the retry and circuit breaker policies used by the
// HTTP transport.
//
// This package implements:
//   - Retry Policies: exponential backoff and fixed delay
//   - Circuit Breaker: stops calling a failing endpoint until a cool-down passes
//
// Errors are retried unless they implement IsRetryable() bool and report false,
// or wrap ErrNonRetryable.
//
// Example usage:
//
//	cb := NewCircuitBreaker(
//	    WithFailureThreshold(5),
//	    WithTimeout(30 * time.Second),
//	)
//
//	err := Retry(ctx, NewExponentialBackoff(100*time.Millisecond, 2*time.Second, 2.0, 3), func() error {
//	    return cb.Execute(ctx, send)
//	})
package reliability
