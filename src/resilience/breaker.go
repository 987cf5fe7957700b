package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"ledgerguard/src/model"
)

// BreakerStateStore persists observed breaker transitions. Satisfied by
// repository.BreakerStateRepository; nil-able for isolated tests.
type BreakerStateStore interface {
	Upsert(ctx context.Context, rec *model.CircuitBreakerRecord) error
}

// BreakerRegistry owns one circuit breaker per protected resource name.
// It is an injected coordinator, not package state: tests instantiate their
// own registry and callers share a single instance through the executor.
type BreakerRegistry struct {
	mu        sync.Mutex
	breakers  map[string]*gobreaker.CircuitBreaker[any]
	threshold int
	cooldown  time.Duration
	store     BreakerStateStore
}

func NewBreakerRegistry(threshold int, cooldown time.Duration, store BreakerStateStore) *BreakerRegistry {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &BreakerRegistry{
		breakers:  make(map[string]*gobreaker.CircuitBreaker[any]),
		threshold: threshold,
		cooldown:  cooldown,
		store:     store,
	}
}

// Call routes fn through the breaker for the named resource. While the
// breaker is open every call fails immediately with CircuitBreakerOpenError
// without invoking fn; after the cooldown a single trial call is let
// through (half-open), closing the breaker on success.
func (r *BreakerRegistry) Call(ctx context.Context, resource string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cb := r.breaker(resource)
	_, err := cb.Execute(func() (any, error) {
		return nil, fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &CircuitBreakerOpenError{Resource: resource, State: stateName(cb.State())}
	}
	// OnStateChange mirrors transitions, and the trip resets the counters;
	// here we only track the running failure count while the breaker stays
	// closed.
	if err != nil && cb.State() == gobreaker.StateClosed {
		r.persist(resource, model.BreakerClosed, int(cb.Counts().ConsecutiveFailures), nil)
	}
	return err
}

// State returns the current state name for a resource.
func (r *BreakerRegistry) State(resource string) string {
	return stateName(r.breaker(resource).State())
}

// Reset forces the named breaker back to CLOSED administratively by
// swapping in a fresh instance with zeroed counters.
func (r *BreakerRegistry) Reset(resource string) {
	r.mu.Lock()
	r.breakers[resource] = r.build(resource)
	r.mu.Unlock()

	logger.WithField("resource", resource).Info("Circuit breaker reset to CLOSED")
	r.persist(resource, model.BreakerClosed, 0, nil)
}

func (r *BreakerRegistry) breaker(resource string) *gobreaker.CircuitBreaker[any] {
	r.mu.Lock()
	defer r.mu.Unlock()

	cb, ok := r.breakers[resource]
	if !ok {
		cb = r.build(resource)
		r.breakers[resource] = cb
	}
	return cb
}

func (r *BreakerRegistry) build(resource string) *gobreaker.CircuitBreaker[any] {
	threshold := uint32(r.threshold)

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        resource,
		MaxRequests: 1, // exactly one trial call in half-open
		Timeout:     r.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]interface{}{
				"resource": name,
				"from":     stateName(from),
				"to":       stateName(to),
			}).Warn("Circuit breaker state change")

			var openedAt *time.Time
			if to == gobreaker.StateOpen {
				now := time.Now().UTC()
				openedAt = &now
			}
			failures := 0
			if to == gobreaker.StateOpen {
				failures = r.threshold
			}
			r.persist(name, stateName(to), failures, openedAt)
		},
	})
}

// persist mirrors the transition into circuit_breaker_state. Persistence is
// best-effort: a store outage must not take the breaker down with it.
func (r *BreakerRegistry) persist(resource, state string, failures int, openedAt *time.Time) {
	if r.store == nil {
		return
	}

	rec := &model.CircuitBreakerRecord{
		ResourceName:        resource,
		State:               state,
		ConsecutiveFailures: failures,
		OpenedAt:            openedAt,
		UpdatedAt:           time.Now().UTC(),
	}
	if err := r.store.Upsert(context.Background(), rec); err != nil {
		logger.WithError(err).WithField("resource", resource).
			Error("Failed to persist circuit breaker state")
	}
}

func stateName(s gobreaker.State) string {
	switch s {
	case gobreaker.StateOpen:
		return model.BreakerOpen
	case gobreaker.StateHalfOpen:
		return model.BreakerHalfOpen
	default:
		return model.BreakerClosed
	}
}
