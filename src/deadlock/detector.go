package deadlock

import (
	"fmt"
	"strings"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
)

// DeadlockError is raised when a lock request would close a cycle in the
// wait-for graph. It is an expected, transient condition: the transaction
// manager routes it to the retry executor instead of failing the caller.
type DeadlockError struct {
	VictimTxID string
	Cycle      []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("deadlock detected, transaction %s chosen as victim (cycle: %s)",
		e.VictimTxID, strings.Join(e.Cycle, " -> "))
}

// Detector maintains an advisory wait-for graph across concurrently active
// transactions. It never blocks callers; the underlying store does the real
// locking. The detector only observes registered lock requests and raises
// when a request would complete a cycle.
//
// All state is guarded by a single mutex, so callers need no external
// synchronization. Instantiate one detector per manager; there is no
// package-level registry.
type Detector struct {
	mu sync.Mutex

	startedAt map[string]time.Time
	held      map[string]map[string]bool // tx -> resources held
	holders   map[string]map[string]bool // resource -> txs holding
	waitsFor  map[string]map[string]bool // tx -> txs it waits on
	doomed    map[string]bool
}

func NewDetector() *Detector {
	return &Detector{
		startedAt: make(map[string]time.Time),
		held:      make(map[string]map[string]bool),
		holders:   make(map[string]map[string]bool),
		waitsFor:  make(map[string]map[string]bool),
		doomed:    make(map[string]bool),
	}
}

// Register adds a transaction to the active set.
func (d *Detector) Register(txID string, startedAt time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.startedAt[txID] = startedAt
	d.held[txID] = make(map[string]bool)
	d.waitsFor[txID] = make(map[string]bool)
}

// Unregister removes a transaction and every edge touching it. Called when
// the scope closes, commit or rollback alike.
func (d *Detector) Unregister(txID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for resource := range d.held[txID] {
		delete(d.holders[resource], txID)
		if len(d.holders[resource]) == 0 {
			delete(d.holders, resource)
		}
	}
	delete(d.held, txID)
	delete(d.waitsFor, txID)
	delete(d.startedAt, txID)
	delete(d.doomed, txID)

	for _, waits := range d.waitsFor {
		delete(waits, txID)
	}
}

// HeldLocks returns how many resources the transaction currently holds.
func (d *Detector) HeldLocks(txID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.held[txID])
}

// CheckDoomed reports whether the transaction was picked as a deadlock
// victim by another participant closing a cycle. The manager calls this at
// the commit gate; lock requests check it implicitly.
func (d *Detector) CheckDoomed(txID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doomed[txID] {
		delete(d.doomed, txID)
		return &DeadlockError{VictimTxID: txID, Cycle: []string{txID}}
	}
	return nil
}

// AddLockRequest records that txID needs resource. If other active
// transactions already hold the resource, wait-for edges are inserted and
// cycle detection runs over the graph. On a cycle, the victim is chosen by
// fewest currently held locks; ties go against the earliest-started
// transaction. If the victim is the requester the error returns
// synchronously; otherwise the victim is doomed and fails on its next
// request or at its commit gate, while the requester proceeds.
func (d *Detector) AddLockRequest(txID, resource string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.doomed[txID] {
		delete(d.doomed, txID)
		return &DeadlockError{VictimTxID: txID, Cycle: []string{txID}}
	}
	if _, active := d.startedAt[txID]; !active {
		return fmt.Errorf("lock request for unregistered transaction %s", txID)
	}

	if d.held[txID][resource] {
		return nil
	}

	contended := false
	for holder := range d.holders[resource] {
		if holder == txID {
			continue
		}
		if _, active := d.startedAt[holder]; !active {
			continue
		}
		d.waitsFor[txID][holder] = true
		contended = true
	}

	if contended {
		if cycle := d.findCycle(txID); cycle != nil {
			victim := d.pickVictim(cycle)

			logger.WithFields(map[string]interface{}{
				"requester": txID,
				"victim":    victim,
				"cycle":     strings.Join(cycle, " -> "),
			}).Warn("Deadlock cycle detected in wait-for graph")

			if victim == txID {
				// Undo the edges that completed the cycle; the caller
				// rolls back and may retry.
				d.waitsFor[txID] = make(map[string]bool)
				return &DeadlockError{VictimTxID: victim, Cycle: cycle}
			}

			d.doomed[victim] = true
		}
	}

	d.grant(txID, resource)
	return nil
}

func (d *Detector) grant(txID, resource string) {
	if d.holders[resource] == nil {
		d.holders[resource] = make(map[string]bool)
	}
	d.holders[resource][txID] = true
	d.held[txID][resource] = true
}

// findCycle runs a DFS over the wait-for graph starting from the requester
// and returns the cycle through it, or nil.
func (d *Detector) findCycle(start string) []string {
	visited := make(map[string]bool)
	var path []string

	var dfs func(node string) []string
	dfs = func(node string) []string {
		if node == start && len(path) > 0 {
			return append([]string(nil), path...)
		}
		if visited[node] {
			return nil
		}
		visited[node] = true
		path = append(path, node)
		for next := range d.waitsFor[node] {
			if _, active := d.startedAt[next]; !active {
				continue
			}
			if cycle := dfs(next); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		return nil
	}

	return dfs(start)
}

// pickVictim chooses the cycle participant holding the fewest locks. On a
// tie the earliest-started transaction loses, which bounds how long an old
// transaction can keep aborting younger ones.
func (d *Detector) pickVictim(cycle []string) string {
	victim := cycle[0]
	for _, tx := range cycle[1:] {
		heldTx, heldVictim := len(d.held[tx]), len(d.held[victim])
		switch {
		case heldTx < heldVictim:
			victim = tx
		case heldTx == heldVictim && d.startedAt[tx].Before(d.startedAt[victim]):
			victim = tx
		}
	}
	return victim
}
