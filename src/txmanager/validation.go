package txmanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"ledgerguard/src/dberrors"
	"ledgerguard/src/model"
)

// validateScope runs commit-time integrity validation at the transaction's
// level. Each level is a superset of the one below:
//
//	BASIC     statements executed without store errors (already enforced)
//	STANDARD  + declared column/range constraints on touched rows
//	STRICT    + referential integrity and all rules on affected tables
//	PARANOID  + full-table scan of every ruled table, untouched rows included
//
// Evaluation runs inside the scope's store transaction so uncommitted rows
// are visible to the checks.
func (m *Manager) validateScope(ctx context.Context, scope *Scope, level string) error {
	rank := model.ValidationLevelRank(level)
	if rank < model.ValidationLevelRank(model.ValidationStandard) {
		return nil
	}

	rules := m.ruleRepo.WithDB(scope.tx)
	eval := ruleEvaluator{db: scope.tx.WithContext(ctx)}

	var violations []dberrors.RuleViolation

	tables := scope.touchedTables()
	if len(tables) > 0 {
		tableRules, err := rules.ForTables(ctx, tables)
		if err != nil {
			return err
		}

		for _, rule := range tableRules {
			if model.ValidationLevelRank(rule.MinimumLevel) > rank {
				continue
			}
			// Referential checks belong to STRICT and above.
			if rule.IsForeignKey() && rank < model.ValidationLevelRank(model.ValidationStrict) {
				continue
			}

			ids, scoped := scope.touchedRecords(rule.Table)
			if !scoped {
				ids = nil // whole-table write, check every row
			}
			found, err := eval.evaluate(rule, ids)
			if err != nil {
				return err
			}
			violations = append(violations, found...)
		}
	}

	if rank >= model.ValidationLevelRank(model.ValidationParanoid) {
		all, err := rules.Active(ctx)
		if err != nil {
			return err
		}
		for _, rule := range all {
			found, err := eval.evaluate(rule, nil)
			if err != nil {
				return err
			}
			violations = append(violations, found...)
		}
		violations = dedupeViolations(violations)
	}

	if len(violations) > 0 {
		return &dberrors.ValidationError{
			TransactionID: scope.record.ID,
			Level:         level,
			Violations:    violations,
		}
	}
	return nil
}

// ruleEvaluator checks one rule against a table, optionally restricted to a
// set of record ids. Table and column names come from trusted rule
// configuration, never from callers.
type ruleEvaluator struct {
	db *gorm.DB
}

func (e ruleEvaluator) evaluate(rule model.ValidationRule, ids []string) ([]dberrors.RuleViolation, error) {
	if rule.IsForeignKey() {
		return e.evaluateForeignKey(rule, ids)
	}

	query := e.db.Table(rule.Table).
		Select(fmt.Sprintf("id, %s", rule.ColumnName))
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	rows, err := query.Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var violations []dberrors.RuleViolation
	for rows.Next() {
		var id, value sql.NullString
		if err := rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		if detail, ok := checkPredicate(rule.Predicate, value); !ok {
			violations = append(violations, dberrors.RuleViolation{
				Table:     rule.Table,
				Column:    rule.ColumnName,
				Predicate: rule.Predicate,
				RecordID:  id.String,
				Detail:    detail,
			})
		}
	}
	return violations, rows.Err()
}

func (e ruleEvaluator) evaluateForeignKey(rule model.ValidationRule, ids []string) ([]dberrors.RuleViolation, error) {
	targetTable, targetColumn := rule.ForeignKeyTarget()
	if targetTable == "" {
		return nil, fmt.Errorf("malformed foreign key predicate %q on %s.%s",
			rule.Predicate, rule.Table, rule.ColumnName)
	}

	query := e.db.Table(rule.Table).
		Select(fmt.Sprintf("id, %s", rule.ColumnName))
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}

	rows, err := query.Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type ref struct{ id, value string }
	var refs []ref
	for rows.Next() {
		var id, value sql.NullString
		if err := rows.Scan(&id, &value); err != nil {
			return nil, err
		}
		if value.Valid && value.String != "" {
			refs = append(refs, ref{id: id.String, value: value.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var violations []dberrors.RuleViolation
	for _, r := range refs {
		var count int64
		err := e.db.Table(targetTable).
			Where(fmt.Sprintf("%s = ?", targetColumn), r.value).
			Count(&count).Error
		if err != nil {
			return nil, err
		}
		if count == 0 {
			violations = append(violations, dberrors.RuleViolation{
				Table:     rule.Table,
				Column:    rule.ColumnName,
				Predicate: rule.Predicate,
				RecordID:  r.id,
				Detail:    fmt.Sprintf("references missing %s.%s = %s", targetTable, targetColumn, r.value),
			})
		}
	}
	return violations, nil
}

// checkPredicate evaluates a non-FK predicate against one value. NULLs only
// fail not_null; numeric predicates skip them so a single missing value is
// not double-reported.
func checkPredicate(predicate string, value sql.NullString) (detail string, ok bool) {
	switch predicate {
	case model.PredicateNotNull:
		if !value.Valid || value.String == "" {
			return "value is NULL or empty", false
		}
		return "", true

	case model.PredicatePositive, model.PredicateNonNegative:
		if !value.Valid {
			return "", true
		}
		d, err := decimal.NewFromString(value.String)
		if err != nil {
			return fmt.Sprintf("value %q is not numeric", value.String), false
		}
		if predicate == model.PredicatePositive && d.LessThanOrEqual(decimal.Zero) {
			return fmt.Sprintf("value %s must be > 0", d), false
		}
		if predicate == model.PredicateNonNegative && d.IsNegative() {
			return fmt.Sprintf("value %s must be >= 0", d), false
		}
		return "", true
	}

	// Unknown predicates fail closed: a typo in rule configuration must not
	// silently pass financial data.
	return fmt.Sprintf("unknown predicate %q", predicate), false
}

func dedupeViolations(violations []dberrors.RuleViolation) []dberrors.RuleViolation {
	seen := make(map[dberrors.RuleViolation]bool, len(violations))
	out := violations[:0]
	for _, v := range violations {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
