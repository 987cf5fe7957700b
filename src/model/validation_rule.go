package model

import "strings"

// Predicate kinds understood by the integrity validator.
const (
	PredicatePositive    = "positive"
	PredicateNonNegative = "non_negative"
	PredicateNotNull     = "not_null"

	// Foreign-key predicates are encoded as "foreign_key:<table>.<column>".
	predicateForeignKeyPrefix = "foreign_key:"
)

// ValidationRule is read-only configuration evaluated against affected rows
// at commit time, when the transaction's validation level is at or above the
// rule's required level.
type ValidationRule struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Table        string `gorm:"column:table_name;size:100;not null;index" json:"table_name"`
	ColumnName   string `gorm:"size:100;not null" json:"column_name"`
	Predicate    string `gorm:"size:200;not null" json:"predicate"`
	MinimumLevel string `gorm:"size:20;not null;default:STANDARD" json:"minimum_level"`
	Active       bool   `gorm:"not null;default:true" json:"active"`
}

func (ValidationRule) TableName() string {
	return "validation_rules"
}

// IsForeignKey reports whether the rule encodes a referential check.
func (r ValidationRule) IsForeignKey() bool {
	return strings.HasPrefix(r.Predicate, predicateForeignKeyPrefix)
}

// ForeignKeyTarget splits a foreign_key predicate into its referenced table
// and column. Returns empty strings for non-FK rules or malformed targets.
func (r ValidationRule) ForeignKeyTarget() (table, column string) {
	if !r.IsForeignKey() {
		return "", ""
	}
	target := strings.TrimPrefix(r.Predicate, predicateForeignKeyPrefix)
	parts := strings.SplitN(target, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", ""
	}
	return parts[0], parts[1]
}
