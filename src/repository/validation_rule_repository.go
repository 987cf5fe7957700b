package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ledgerguard/src/database"
	"ledgerguard/src/model"
)

// ValidationRuleRepository reads the integrity rule configuration.
type ValidationRuleRepository struct {
	db *gorm.DB
}

func NewValidationRuleRepository() *ValidationRuleRepository {
	return &ValidationRuleRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *ValidationRuleRepository) WithDB(db *gorm.DB) *ValidationRuleRepository {
	return &ValidationRuleRepository{db: db}
}

// Active returns every active rule.
func (r *ValidationRuleRepository) Active(ctx context.Context) ([]model.ValidationRule, error) {
	var rules []model.ValidationRule
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// ForTables returns active rules restricted to the given tables.
func (r *ValidationRuleRepository) ForTables(ctx context.Context, tables []string) ([]model.ValidationRule, error) {
	if len(tables) == 0 {
		return nil, nil
	}

	var rules []model.ValidationRule
	err := r.db.WithContext(ctx).
		Where("active = ? AND table_name IN ?", true, tables).
		Find(&rules).Error
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// SeedDefaults inserts the baseline financial invariants when the rule table
// is empty. Idempotent across restarts.
func (r *ValidationRuleRepository) SeedDefaults(ctx context.Context) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.ValidationRule{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []model.ValidationRule{
		{Table: "orders", ColumnName: "quantity", Predicate: model.PredicatePositive, MinimumLevel: model.ValidationStandard, Active: true},
		{Table: "orders", ColumnName: "price", Predicate: model.PredicatePositive, MinimumLevel: model.ValidationStandard, Active: true},
		{Table: "orders", ColumnName: "user_id", Predicate: "foreign_key:users.id", MinimumLevel: model.ValidationStrict, Active: true},
		{Table: "positions", ColumnName: "quantity", Predicate: model.PredicateNonNegative, MinimumLevel: model.ValidationStandard, Active: true},
		{Table: "positions", ColumnName: "symbol", Predicate: model.PredicateNotNull, MinimumLevel: model.ValidationStandard, Active: true},
	}

	if err := r.db.WithContext(ctx).Create(&defaults).Error; err != nil {
		return err
	}

	logger.WithField("rules", len(defaults)).Info("Seeded default validation rules")
	return nil
}
