package model

import "time"

// Transaction types issued by the trading engine collaborators.
const (
	TxTypeTradeExecution  = "TRADE_EXECUTION"
	TxTypePortfolioUpdate = "PORTFOLIO_UPDATE"
	TxTypeOrderManagement = "ORDER_MANAGEMENT"
	TxTypeComplianceWrite = "COMPLIANCE_WRITE"
	TxTypeRiskAdjustment  = "RISK_ADJUSTMENT"
)

// Transaction statuses. A status is terminal once set to COMMITTED or
// ROLLED_BACK; no further operations may be attached after that.
const (
	TxStatusPending    = "PENDING"
	TxStatusCommitted  = "COMMITTED"
	TxStatusRolledBack = "ROLLED_BACK"
)

// Validation levels, ordered. Each level is a superset of the previous one.
const (
	ValidationBasic    = "BASIC"
	ValidationStandard = "STANDARD"
	ValidationStrict   = "STRICT"
	ValidationParanoid = "PARANOID"
)

// ValidationLevelRank maps a level name to its position in the escalation
// order so levels can be compared numerically.
func ValidationLevelRank(level string) int {
	switch level {
	case ValidationBasic:
		return 0
	case ValidationStandard:
		return 1
	case ValidationStrict:
		return 2
	case ValidationParanoid:
		return 3
	default:
		return 0
	}
}

// Transaction is the persisted record of one managed transaction scope.
// The row itself lives outside the store-level transaction it describes,
// so a rollback still leaves a ROLLED_BACK row behind for auditing.
type Transaction struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	Type            string     `gorm:"size:50;not null;index" json:"type"`
	UserID          uint       `gorm:"index" json:"user_id"`
	ValidationLevel string     `gorm:"size:20;not null;default:BASIC" json:"validation_level"`
	Status          string     `gorm:"size:20;not null;default:PENDING;index" json:"status"`
	OpenedAt        time.Time  `json:"opened_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`

	// One-to-many relation: operations issued through the scope.
	Operations []TransactionOperation `gorm:"foreignKey:TransactionID" json:"operations,omitempty"`
}

func (Transaction) TableName() string {
	return "transactions"
}
