package model

import "time"

// Error categories produced by the classifier.
const (
	CategoryConnection = "CONNECTION_ERROR"
	CategoryConstraint = "CONSTRAINT_ERROR"
	CategoryTimeout    = "TIMEOUT_ERROR"
	CategoryDeadlock   = "DEADLOCK"
	CategoryUnknown    = "UNKNOWN"
)

// Severities.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Recovery actions attached to a classified error.
const (
	RecoveryReconnect = "RECONNECT"
	RecoveryRetry     = "RETRY"
	RecoveryIgnore    = "IGNORE"
	RecoveryFail      = "FAIL"
)

// DatabaseError is a classified failure persisted for auditing and
// monitoring. Created on every caught store failure, mutated only by
// marking it resolved, deleted only by retention cleanup.
type DatabaseError struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Category       string `gorm:"size:30;not null;index" json:"category"`
	Severity       string `gorm:"size:20;not null;index" json:"severity"`
	RecoveryAction string `gorm:"size:20;not null" json:"recovery_action"`

	// Operation context and the raw store message.
	Operation string `gorm:"size:100;index" json:"operation,omitempty"`
	Message   string `gorm:"type:text" json:"message"`

	OccurredAt time.Time `gorm:"index" json:"occurred_at"`
	Resolved   bool      `gorm:"not null;default:false;index" json:"resolved"`
}

func (DatabaseError) TableName() string {
	return "error_log"
}
