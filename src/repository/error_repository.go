package repository

import (
	"context"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ledgerguard/src/database"
	"ledgerguard/src/model"
)

// ErrorRepository handles persistence of classified database errors.
// The error log is append-mostly: rows are created on every caught failure,
// mutated only when marked resolved, and deleted only by retention cleanup.
type ErrorRepository struct {
	db *gorm.DB
}

// NewErrorRepository creates a new repository instance.
func NewErrorRepository() *ErrorRepository {
	return &ErrorRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *ErrorRepository) WithDB(db *gorm.DB) *ErrorRepository {
	return &ErrorRepository{db: db}
}

// Create persists a classified error.
func (r *ErrorRepository) Create(ctx context.Context, dbErr *model.DatabaseError) error {
	logger.WithFields(map[string]interface{}{
		"repo":      "ErrorRepository",
		"category":  dbErr.Category,
		"severity":  dbErr.Severity,
		"recovery":  dbErr.RecoveryAction,
		"operation": dbErr.Operation,
	}).Warn("Persisting classified database error")

	return r.db.WithContext(ctx).Create(dbErr).Error
}

// ErrorStatistics aggregates the error log for monitoring collaborators.
type ErrorStatistics struct {
	Total      int64            `json:"total"`
	Unresolved int64            `json:"unresolved"`
	ByCategory map[string]int64 `json:"by_category"`
	BySeverity map[string]int64 `json:"by_severity"`
}

// GetStatistics returns aggregate counts over the whole error log.
func (r *ErrorRepository) GetStatistics(ctx context.Context) (*ErrorStatistics, error) {
	stats := &ErrorStatistics{
		ByCategory: make(map[string]int64),
		BySeverity: make(map[string]int64),
	}

	if err := r.db.WithContext(ctx).Model(&model.DatabaseError{}).
		Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&model.DatabaseError{}).
		Where("resolved = ?", false).
		Count(&stats.Unresolved).Error; err != nil {
		return nil, err
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var byCategory []bucket
	if err := r.db.WithContext(ctx).Model(&model.DatabaseError{}).
		Select("category AS key, COUNT(*) AS count").
		Group("category").
		Scan(&byCategory).Error; err != nil {
		return nil, err
	}
	for _, b := range byCategory {
		stats.ByCategory[b.Key] = b.Count
	}

	var bySeverity []bucket
	if err := r.db.WithContext(ctx).Model(&model.DatabaseError{}).
		Select("severity AS key, COUNT(*) AS count").
		Group("severity").
		Scan(&bySeverity).Error; err != nil {
		return nil, err
	}
	for _, b := range bySeverity {
		stats.BySeverity[b.Key] = b.Count
	}

	return stats, nil
}

// GetRecent returns errors that occurred within the last N hours, newest
// first.
func (r *ErrorRepository) GetRecent(ctx context.Context, hours int) ([]model.DatabaseError, error) {
	if hours <= 0 {
		hours = 24
	}
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	var errs []model.DatabaseError
	err := r.db.WithContext(ctx).
		Where("occurred_at >= ?", cutoff).
		Order("occurred_at DESC").
		Find(&errs).Error
	if err != nil {
		return nil, err
	}
	return errs, nil
}

// MarkResolved flags a logged error as handled.
func (r *ErrorRepository) MarkResolved(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).
		Model(&model.DatabaseError{}).
		Where("id = ?", id).
		Update("resolved", true)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("error %d not found", id)
	}

	logger.WithField("error_id", id).Info("Database error marked resolved")
	return nil
}

// CleanupOld deletes resolved errors older than the retention window and
// returns how many rows were removed. Unresolved errors are kept regardless
// of age.
func (r *ErrorRepository) CleanupOld(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	result := r.db.WithContext(ctx).
		Where("resolved = ? AND occurred_at < ?", true, cutoff).
		Delete(&model.DatabaseError{})

	if result.Error != nil {
		logger.WithError(result.Error).Error("Failed to clean up old errors")
		return 0, result.Error
	}

	logger.WithFields(map[string]interface{}{
		"removed": result.RowsAffected,
		"days":    days,
	}).Info("Old resolved errors cleaned up")

	return result.RowsAffected, nil
}
