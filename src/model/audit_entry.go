package model

import "time"

// AuditEntry is the compliance trail row written alongside every operation,
// in the same store transaction. Invariant: for a committed transaction the
// audit row count equals the operation count; on rollback both vanish.
type AuditEntry struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TransactionID string    `gorm:"size:36;not null;index" json:"transaction_id"`
	Table         string    `gorm:"column:table_name;size:100;not null" json:"table_name"`
	OperationType string    `gorm:"size:10;not null" json:"operation_type"`
	RecordID      string    `gorm:"size:60" json:"record_id,omitempty"`
	Payload       string    `gorm:"type:text" json:"payload,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (AuditEntry) TableName() string {
	return "transaction_audit_trail"
}
