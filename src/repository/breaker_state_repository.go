package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ledgerguard/src/database"
	"ledgerguard/src/model"
)

// BreakerStateRepository mirrors in-memory circuit breaker state into the
// circuit_breaker_state table so monitoring survives restarts.
type BreakerStateRepository struct {
	db *gorm.DB
}

func NewBreakerStateRepository() *BreakerStateRepository {
	return &BreakerStateRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *BreakerStateRepository) WithDB(db *gorm.DB) *BreakerStateRepository {
	return &BreakerStateRepository{db: db}
}

// Upsert writes the latest observed state for a resource.
func (r *BreakerStateRepository) Upsert(ctx context.Context, rec *model.CircuitBreakerRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "resource_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"state", "consecutive_failures", "opened_at", "updated_at",
			}),
		}).
		Create(rec).Error
}

// Get fetches the persisted state for one resource. Returns (nil, nil) when
// the resource has never tripped.
func (r *BreakerStateRepository) Get(ctx context.Context, resourceName string) (*model.CircuitBreakerRecord, error) {
	var rec model.CircuitBreakerRecord
	err := r.db.WithContext(ctx).
		Where("resource_name = ?", resourceName).
		First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// All returns the persisted state of every known breaker.
func (r *BreakerStateRepository) All(ctx context.Context) ([]model.CircuitBreakerRecord, error) {
	var recs []model.CircuitBreakerRecord
	if err := r.db.WithContext(ctx).Order("resource_name").Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}
