package txmanager

import (
	"encoding/json"
	"errors"
	"sync"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ledgerguard/src/dberrors"
	"ledgerguard/src/model"
)

// ErrScopeClosed is returned when Execute is called after the transaction
// reached a terminal status.
var ErrScopeClosed = errors.New("transaction scope is closed")

// Scope is the caller's handle on one managed transaction. All statements
// go through Execute, which records an operation and an audit entry in the
// same store transaction as the statement itself.
type Scope struct {
	m      *Manager
	tx     *gorm.DB
	record *model.Transaction

	mu      sync.Mutex
	seq     int
	touched map[string][]string // table -> record ids ("" marks whole-table writes)
	closed  bool
}

func newScope(m *Manager, tx *gorm.DB, record *model.Transaction) *Scope {
	return &Scope{
		m:       m,
		tx:      tx,
		record:  record,
		touched: make(map[string][]string),
	}
}

// TransactionID returns the id of the underlying transaction record.
func (s *Scope) TransactionID() string {
	return s.record.ID
}

// Execute runs one statement inside the scope and records it. The operation
// and its audit entry ride in the same store transaction, so a rollback
// removes the statement's effects and its audit trace together.
//
// The resource lock is registered with the deadlock detector before the
// statement runs; a request that would close a cycle in the wait-for graph
// fails here with a DeadlockError.
func (s *Scope) Execute(statement string, params []interface{}, tableName, operationType, recordID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrScopeClosed
	}

	resource := tableName
	if recordID != "" {
		resource = tableName + ":" + recordID
	}
	if err := s.m.detector.AddLockRequest(s.record.ID, resource); err != nil {
		return err
	}

	if err := s.tx.Exec(statement, params...).Error; err != nil {
		s.recordFailure(err)

		logger.WithFields(map[string]interface{}{
			"tx_id": s.record.ID,
			"table": tableName,
			"op":    operationType,
		}).WithError(err).Error("Statement failed inside transaction scope")

		return err
	}

	s.seq++
	operation := &model.TransactionOperation{
		TransactionID: s.record.ID,
		Table:         tableName,
		OperationType: operationType,
		RecordID:      recordID,
		Statement:     statement,
		SequenceNo:    s.seq,
	}
	if err := s.tx.Create(operation).Error; err != nil {
		return err
	}

	audit := &model.AuditEntry{
		TransactionID: s.record.ID,
		Table:         tableName,
		OperationType: operationType,
		RecordID:      recordID,
		Payload:       auditPayload(statement, params),
	}
	if err := s.tx.Create(audit).Error; err != nil {
		return err
	}

	s.touched[tableName] = append(s.touched[tableName], recordID)
	return nil
}

// recordFailure classifies and persists a store-level failure against the
// main connection, not the scope's transaction: the scope is about to roll
// back and the error log must survive it.
func (s *Scope) recordFailure(err error) {
	classified := dberrors.Classify(err)
	classified.Operation = "transaction:" + s.record.Type
	if storeErr := s.m.db.Create(classified).Error; storeErr != nil {
		logger.WithError(storeErr).Error("Failed to persist classified statement error")
	}
}

func (s *Scope) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// touchedTables returns the distinct tables written through the scope.
func (s *Scope) touchedTables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := make([]string, 0, len(s.touched))
	for table := range s.touched {
		tables = append(tables, table)
	}
	return tables
}

// touchedRecords returns the record ids written in one table. An empty
// second return means at least one statement touched the table without a
// record id, so validation has to consider the whole table.
func (s *Scope) touchedRecords(table string) (ids []string, scoped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scoped = true
	for _, id := range s.touched[table] {
		if id == "" {
			scoped = false
			continue
		}
		ids = append(ids, id)
	}
	return ids, scoped
}

func auditPayload(statement string, params []interface{}) string {
	payload := map[string]interface{}{
		"statement": statement,
		"params":    params,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		// Params that cannot marshal still leave the statement on record.
		raw, _ = json.Marshal(map[string]interface{}{"statement": statement})
	}
	return string(raw)
}
