package resilience

import (
	"context"
	"errors"

	retry "github.com/avast/retry-go/v5"
	logger "github.com/sirupsen/logrus"

	"ledgerguard/src/dberrors"
	"ledgerguard/src/deadlock"
	"ledgerguard/src/model"
)

// ErrorStore persists classified errors. Satisfied by
// repository.ErrorRepository; nil-able for isolated tests.
type ErrorStore interface {
	Create(ctx context.Context, dbErr *model.DatabaseError) error
}

// CriticalNotifier receives classified errors of CRITICAL severity.
// Satisfied by alerting.Notifier.
type CriticalNotifier interface {
	NotifyCritical(ctx context.Context, dbErr *model.DatabaseError)
}

// Executor is the resilient operation executor: it classifies raw store
// failures, applies bounded retry with exponential backoff to the retryable
// categories, and optionally gates calls behind per-resource circuit
// breakers. The transaction manager reuses it for deadlock retries.
type Executor struct {
	policy   RetryPolicy
	resource string
	breakers *BreakerRegistry
	errStore ErrorStore
	notifier CriticalNotifier
}

func NewExecutor(policy RetryPolicy, breakers *BreakerRegistry, errStore ErrorStore) *Executor {
	if policy.MaxRetries == 0 {
		policy.MaxRetries = 3
	}
	return &Executor{
		policy:   policy,
		resource: "connection",
		breakers: breakers,
		errStore: errStore,
	}
}

// WithNotifier attaches a critical-error notifier.
func (e *Executor) WithNotifier(n CriticalNotifier) *Executor {
	e.notifier = n
	return e
}

// WithDefaultResource overrides the breaker resource guarding plain calls.
func (e *Executor) WithDefaultResource(resource string) *Executor {
	if resource != "" {
		e.resource = resource
	}
	return e
}

// Breakers exposes the registry for administrative resets.
func (e *Executor) Breakers() *BreakerRegistry {
	return e.breakers
}

// ExecuteWithRetry runs op with bounded exponential backoff. Only
// TIMEOUT_ERROR and DEADLOCK categories are re-attempted; any other failure
// is returned on first occurrence with zero retries. Every classified
// failure is persisted to the error log, whether or not a later attempt
// succeeds. Once the attempt budget is exhausted the last classified error
// is wrapped in DatabaseOperationError.
func (e *Executor) ExecuteWithRetry(ctx context.Context, operationName string, op func(ctx context.Context) error) error {
	var last *model.DatabaseError

	attempt := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var open *CircuitBreakerOpenError
		if errors.As(err, &open) {
			// Breaker rejections are not store failures; surface them
			// untouched so the caller can apply its own backoff.
			return err
		}

		classified := dberrors.Classify(err)
		classified.Operation = operationName
		last = classified
		e.record(ctx, classified)
		return err
	}

	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(e.policy.MaxRetries),
		retry.Delay(e.policy.BaseDelay),
		retry.MaxDelay(e.policy.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var open *CircuitBreakerOpenError
			if errors.As(err, &open) {
				return false
			}
			return dberrors.Retryable(dberrors.Classify(err).Category)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.WithFields(map[string]interface{}{
				"operation": operationName,
				"attempt":   n + 1,
			}).WithError(err).Warn("Retrying database operation")
		}),
	).Do(attempt)

	if err == nil {
		return nil
	}

	var open *CircuitBreakerOpenError
	if errors.As(err, &open) {
		return err
	}

	if last != nil && dberrors.Retryable(last.Category) {
		return &DatabaseOperationError{
			Operation:  operationName,
			Classified: last,
			Hint:       dberrors.RemediationHint(last.Category),
			Err:        err,
		}
	}

	// Non-retryable failures propagate unchanged; they indicate a logic or
	// data error the caller has to correct.
	return err
}

// ExecuteWithErrorHandling is the sanctioned path for single-shot resilient
// reads and writes outside a transaction: optional circuit breaker gate,
// then classify-and-retry, with the terminal error persisted.
func (e *Executor) ExecuteWithErrorHandling(ctx context.Context, operationName string, useCircuitBreaker bool, op func(ctx context.Context) error) error {
	wrapped := op
	if useCircuitBreaker && e.breakers != nil {
		wrapped = func(ctx context.Context) error {
			return e.breakers.Call(ctx, e.resource, func() error {
				return op(ctx)
			})
		}
	}
	return e.ExecuteWithRetry(ctx, operationName, wrapped)
}

// ExecuteWithData is the value-returning variant of
// (*Executor).ExecuteWithErrorHandling. Package-level because methods cannot
// carry type parameters.
func ExecuteWithData[T any](ctx context.Context, e *Executor, operationName string, useCircuitBreaker bool, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.ExecuteWithErrorHandling(ctx, operationName, useCircuitBreaker, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

// ExecuteWithDeadlockRetry is the transaction manager's retry path: the
// same bounded-backoff policy, applied to deadlock victims specifically.
// Any other failure — caller errors, constraint violations, validation
// failures — passes through on first occurrence, unclassified and
// unretried, so a rolled-back scope leaves the error log untouched unless
// the store itself failed.
func (e *Executor) ExecuteWithDeadlockRetry(ctx context.Context, operationName string, op func(ctx context.Context) error) error {
	var last *model.DatabaseError

	attempt := func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}

		var dl *deadlock.DeadlockError
		if errors.As(err, &dl) {
			classified := dberrors.Classify(err)
			classified.Operation = operationName
			last = classified
			e.record(ctx, classified)
		}
		return err
	}

	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(e.policy.MaxRetries),
		retry.Delay(e.policy.BaseDelay),
		retry.MaxDelay(e.policy.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var dl *deadlock.DeadlockError
			return errors.As(err, &dl)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.WithFields(map[string]interface{}{
				"operation": operationName,
				"attempt":   n + 1,
			}).WithError(err).Warn("Retrying transaction after deadlock")
		}),
	).Do(attempt)

	if err == nil {
		return nil
	}

	var dl *deadlock.DeadlockError
	if errors.As(err, &dl) && last != nil {
		return &DatabaseOperationError{
			Operation:  operationName,
			Classified: last,
			Hint:       dberrors.RemediationHint(last.Category),
			Err:        err,
		}
	}
	return err
}

func (e *Executor) record(ctx context.Context, classified *model.DatabaseError) {
	if e.errStore != nil {
		if storeErr := e.errStore.Create(ctx, classified); storeErr != nil {
			logger.WithError(storeErr).Error("Failed to persist classified error")
		}
	}
	if e.notifier != nil && classified.Severity == model.SeverityCritical {
		e.notifier.NotifyCritical(ctx, classified)
	}
}
