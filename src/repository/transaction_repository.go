package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ledgerguard/src/database"
	"ledgerguard/src/model"
)

// TransactionRepository handles persistence of managed transaction records.
type TransactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new repository instance using the main
// read/write database.
func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TransactionRepository) WithDB(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new transaction record with status PENDING.
func (r *TransactionRepository) Create(ctx context.Context, tx *model.Transaction) error {
	logger.WithFields(map[string]interface{}{
		"repo":    "TransactionRepository",
		"op":      "Create",
		"tx_id":   tx.ID,
		"tx_type": tx.Type,
		"user_id": tx.UserID,
	}).Debug("Opening transaction record")

	return r.db.WithContext(ctx).Create(tx).Error
}

// Close sets the terminal status of a transaction. The status column is
// only ever moved off PENDING once; repeated closes are no-ops by the
// WHERE guard, which keeps terminal statuses immutable.
func (r *TransactionRepository) Close(ctx context.Context, txID, status string, closedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND status = ?", txID, model.TxStatusPending).
		Updates(map[string]interface{}{
			"status":    status,
			"closed_at": closedAt,
		})

	if result.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TransactionRepository",
			"op":     "Close",
			"tx_id":  txID,
			"status": status,
		}).WithError(result.Error).Error("Failed to close transaction record")

		return result.Error
	}

	return nil
}

// History returns a user's transactions, most recent first, terminal and
// in-flight alike.
func (r *TransactionRepository) History(ctx context.Context, userID uint, limit int) ([]model.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("opened_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	var transactions []model.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "TransactionRepository",
			"op":      "History",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch transaction history")

		return nil, err
	}

	return transactions, nil
}

// CountsByType returns the number of transactions per type.
func (r *TransactionRepository) CountsByType(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Type  string
		Count int64
	}

	var rows []row
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("type, COUNT(*) AS count").
		Group("type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Type] = r.Count
	}
	return counts, nil
}
