package resilience

import (
	"fmt"

	"ledgerguard/src/model"
)

// CircuitBreakerOpenError is the fail-fast signal returned while a breaker
// refuses calls to a failing resource. It is never retried by this layer;
// callers apply their own backoff.
type CircuitBreakerOpenError struct {
	Resource string
	State    string
}

func (e *CircuitBreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is %s, call rejected", e.Resource, e.State)
}

// DatabaseOperationError is the terminal wrapper raised once retries are
// exhausted. It always carries the originating classified error plus the
// operator remediation hint, so callers see the category rather than a raw
// store string.
type DatabaseOperationError struct {
	Operation  string
	Classified *model.DatabaseError
	Hint       string
	Err        error
}

func (e *DatabaseOperationError) Error() string {
	return fmt.Sprintf("operation %q failed after retries: %s (%s, hint: %s)",
		e.Operation, e.Classified.Category, e.Classified.Message, e.Hint)
}

func (e *DatabaseOperationError) Unwrap() error {
	return e.Err
}
