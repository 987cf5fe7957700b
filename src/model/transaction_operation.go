package model

import "time"

// Operation types recorded per statement.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// TransactionOperation records one statement issued through a transaction
// scope. Written at execute time in the same store transaction as the
// statement itself, so it only becomes permanent if the parent commits.
type TransactionOperation struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TransactionID string    `gorm:"size:36;not null;index" json:"transaction_id"`
	Table         string    `gorm:"column:table_name;size:100;not null" json:"table_name"`
	OperationType string    `gorm:"size:10;not null" json:"operation_type"`
	RecordID      string    `gorm:"size:60" json:"record_id,omitempty"`
	Statement     string    `gorm:"type:text" json:"statement"`
	SequenceNo    int       `gorm:"not null" json:"sequence_no"`
	CreatedAt     time.Time `json:"created_at"`
}

func (TransactionOperation) TableName() string {
	return "transaction_operations"
}
