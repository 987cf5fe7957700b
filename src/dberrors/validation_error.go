package dberrors

import "fmt"

// RuleViolation describes one row failing one validation rule.
type RuleViolation struct {
	Table     string `json:"table"`
	Column    string `json:"column"`
	Predicate string `json:"predicate"`
	RecordID  string `json:"record_id,omitempty"`
	Detail    string `json:"detail"`
}

func (v RuleViolation) String() string {
	return fmt.Sprintf("%s.%s violates %s (record %s): %s",
		v.Table, v.Column, v.Predicate, v.RecordID, v.Detail)
}

// ValidationError is raised when commit-time integrity validation fails.
// The transaction is rolled back, never partially committed. It is local
// and recoverable by the caller correcting its data, so the classifier
// files it as a constraint failure and it is never retried automatically.
type ValidationError struct {
	TransactionID string
	Level         string
	Violations    []RuleViolation
}

func (e *ValidationError) Error() string {
	switch len(e.Violations) {
	case 0:
		return fmt.Sprintf("transaction %s failed %s validation", e.TransactionID, e.Level)
	case 1:
		return fmt.Sprintf("transaction %s failed %s validation: %s",
			e.TransactionID, e.Level, e.Violations[0])
	default:
		return fmt.Sprintf("transaction %s failed %s validation: %s (and %d more violations)",
			e.TransactionID, e.Level, e.Violations[0], len(e.Violations)-1)
	}
}
