package txmanager

import (
	"context"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ledgerguard/src/deadlock"
	"ledgerguard/src/model"
	"ledgerguard/src/repository"
	"ledgerguard/src/resilience"
)

// Manager wraps multi-statement database operations in audited, validated
// transaction scopes. It composes the deadlock detector and the resilient
// executor: each scope registers its lock acquisitions with the detector,
// and a deadlock victim is re-attempted through the executor's retry
// policy.
//
// All coordination state (lock graph, breakers) lives in the injected
// collaborators; the manager itself holds no package-level state, so tests
// instantiate isolated managers.
type Manager struct {
	db       *gorm.DB
	detector *deadlock.Detector
	exec     *resilience.Executor

	txRepo   *repository.TransactionRepository
	ruleRepo *repository.ValidationRuleRepository
}

func NewManager(db *gorm.DB, detector *deadlock.Detector, exec *resilience.Executor) *Manager {
	return &Manager{
		db:       db,
		detector: detector,
		exec:     exec,
		txRepo:   repository.NewTransactionRepository().WithDB(db),
		ruleRepo: repository.NewValidationRuleRepository().WithDB(db),
	}
}

// Transaction opens a managed scope, runs fn inside it and commits on
// normal exit after integrity validation. Any error returned by fn rolls
// back everything issued through the scope — operations and audit rows
// alike — and is returned to the caller unchanged. Deadlock victims are
// re-attempted with the executor's retry policy; the whole closure runs
// again against a fresh scope, so fn must be safe to re-execute.
//
// This is the only sanctioned write path into financial tables.
func (m *Manager) Transaction(ctx context.Context, txType string, userID uint, validationLevel string, fn func(*Scope) error) error {
	if validationLevel == "" {
		validationLevel = model.ValidationBasic
	}

	return m.exec.ExecuteWithDeadlockRetry(ctx, "transaction:"+txType, func(ctx context.Context) error {
		return m.runOnce(ctx, txType, userID, validationLevel, fn)
	})
}

func (m *Manager) runOnce(ctx context.Context, txType string, userID uint, validationLevel string, fn func(*Scope) error) (err error) {
	record := &model.Transaction{
		ID:              uuid.NewString(),
		Type:            txType,
		UserID:          userID,
		ValidationLevel: validationLevel,
		Status:          model.TxStatusPending,
		OpenedAt:        time.Now().UTC(),
	}

	// The transaction record lives outside the store transaction it
	// describes, so a ROLLED_BACK status survives the rollback.
	if err := m.txRepo.Create(ctx, record); err != nil {
		return err
	}

	m.detector.Register(record.ID, record.OpenedAt)
	defer m.detector.Unregister(record.ID)

	tx := m.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		m.closeRecord(ctx, record.ID, model.TxStatusRolledBack)
		return tx.Error
	}

	scope := newScope(m, tx, record)

	defer func() {
		scope.close()
		if r := recover(); r != nil {
			tx.Rollback()
			m.closeRecord(ctx, record.ID, model.TxStatusRolledBack)
			panic(r)
		}
	}()

	if fnErr := fn(scope); fnErr != nil {
		tx.Rollback()
		m.closeRecord(ctx, record.ID, model.TxStatusRolledBack)
		return fnErr
	}
	scope.close()

	// Commit gate: another participant may have picked this transaction as
	// a deadlock victim while fn was running.
	if doomErr := m.detector.CheckDoomed(record.ID); doomErr != nil {
		tx.Rollback()
		m.closeRecord(ctx, record.ID, model.TxStatusRolledBack)
		return doomErr
	}

	if vErr := m.validateScope(ctx, scope, validationLevel); vErr != nil {
		tx.Rollback()
		m.closeRecord(ctx, record.ID, model.TxStatusRolledBack)
		return vErr
	}

	if commitErr := tx.Commit().Error; commitErr != nil {
		// A failed commit is a store fault like any statement failure:
		// classify it and keep it on the error log.
		scope.recordFailure(commitErr)
		m.closeRecord(ctx, record.ID, model.TxStatusRolledBack)
		return commitErr
	}

	m.closeRecord(ctx, record.ID, model.TxStatusCommitted)

	logger.WithFields(map[string]interface{}{
		"tx_id":      record.ID,
		"tx_type":    txType,
		"operations": scope.seq,
		"level":      validationLevel,
	}).Info("Transaction committed")

	return nil
}

func (m *Manager) closeRecord(ctx context.Context, txID, status string) {
	if err := m.txRepo.Close(ctx, txID, status, time.Now().UTC()); err != nil {
		logger.WithError(err).WithFields(map[string]interface{}{
			"tx_id":  txID,
			"status": status,
		}).Error("Failed to close transaction record")
	}
}

// GetTransactionHistory returns a user's transactions, most recent first,
// in-flight and terminal alike.
func (m *Manager) GetTransactionHistory(ctx context.Context, userID uint, limit int) ([]model.Transaction, error) {
	return m.txRepo.History(ctx, userID, limit)
}
