package model

import "time"

// Circuit breaker states, mirrored from the in-memory state machine.
const (
	BreakerClosed   = "CLOSED"
	BreakerOpen     = "OPEN"
	BreakerHalfOpen = "HALF_OPEN"
)

// CircuitBreakerRecord persists the last observed state of a per-resource
// circuit breaker so monitoring survives restarts. Transitions are the only
// mutations; one row per protected resource name.
type CircuitBreakerRecord struct {
	ResourceName        string     `gorm:"primaryKey;size:100" json:"resource_name"`
	State               string     `gorm:"size:20;not null;default:CLOSED" json:"state"`
	ConsecutiveFailures int        `gorm:"not null;default:0" json:"consecutive_failures"`
	OpenedAt            *time.Time `json:"opened_at,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (CircuitBreakerRecord) TableName() string {
	return "circuit_breaker_state"
}
