package txmanager

import (
	"context"
	"fmt"
	"sort"

	"ledgerguard/src/dberrors"
)

// IntegrityReport is the result of a background consistency scan,
// independent of any specific transaction.
type IntegrityReport struct {
	ActiveRules       int                      `json:"active_rules"`
	Violations        []dberrors.RuleViolation `json:"violations"`
	TransactionCounts map[string]int64         `json:"transaction_counts"`
	Recommendations   []string                 `json:"recommendations"`
}

// GetDataIntegrityReport evaluates every active validation rule over its
// full table and summarizes the current state of the store for monitoring
// collaborators.
func (m *Manager) GetDataIntegrityReport(ctx context.Context) (*IntegrityReport, error) {
	rules, err := m.ruleRepo.Active(ctx)
	if err != nil {
		return nil, err
	}

	eval := ruleEvaluator{db: m.db.WithContext(ctx)}

	var violations []dberrors.RuleViolation
	for _, rule := range rules {
		found, err := eval.evaluate(rule, nil)
		if err != nil {
			return nil, err
		}
		violations = append(violations, found...)
	}

	counts, err := m.txRepo.CountsByType(ctx)
	if err != nil {
		return nil, err
	}

	return &IntegrityReport{
		ActiveRules:       len(rules),
		Violations:        violations,
		TransactionCounts: counts,
		Recommendations:   recommendations(violations),
	}, nil
}

// recommendations derives operator guidance from the violation set.
func recommendations(violations []dberrors.RuleViolation) []string {
	if len(violations) == 0 {
		return []string{"no integrity violations detected"}
	}

	perRule := make(map[string]int)
	for _, v := range violations {
		key := fmt.Sprintf("%s.%s %s", v.Table, v.Column, v.Predicate)
		perRule[key]++
	}

	keys := make([]string, 0, len(perRule))
	for key := range perRule {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	recs := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		recs = append(recs, fmt.Sprintf(
			"%d row(s) violate %s; correct or quarantine them before raising the validation level", perRule[key], key))
	}
	recs = append(recs, "re-run the integrity report after remediation to confirm a clean scan")
	return recs
}
