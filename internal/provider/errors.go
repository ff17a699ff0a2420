package provider

import "fmt"

// ServiceUnavailableError means the provider could not be reached at all:
// transport failure, timeout, or the circuit breaker short-circuiting the
// call. Retrying is the caller's decision; the adapter never retries.
type ServiceUnavailableError struct {
	Cause error
}

func (e *ServiceUnavailableError) Error() string {
	return fmt.Sprintf("ridesharing service unavailable: %v", e.Cause)
}

func (e *ServiceUnavailableError) Unwrap() error { return e.Cause }

// ServiceError means the provider answered with a non-2xx status. The body
// is carried verbatim as opaque diagnostic text.
type ServiceError struct {
	StatusCode int
	Reason     string
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ridesharing service error: non 2xx response %d %s", e.StatusCode, e.Reason)
}
