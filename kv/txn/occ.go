package txn

import (
	"math"
	"sync"

	"github.com/ngaut/log"
	"go.uber.org/atomic"

	"github.com/pingcap-incubator/tinytxn/kv/storage"
)

// occGCInterval is how many commits pass between self-triggered sweeps of the
// committed history.
const occGCInterval = 4096

// committedTxnRecord is what backward validation checks against: the keys a
// committed transaction wrote and when its writes became visible.
type committedTxnRecord struct {
	txnID     uint64
	finishTS  uint64
	writeKeys map[string]struct{}
}

// OCCManager runs optimistic concurrency control with backward validation.
// Transactions execute against private buffers without any locking; at commit
// a single validation mutex serializes the validate-apply-record critical
// section, which makes the commit points a total order.
type OCCManager struct {
	store storage.Storage

	// One monotone counter feeds start (load), validation and finish
	// (fetch-add) timestamps. A validation timestamp can therefore be
	// numerically below the start snapshot of a concurrently beginning
	// transaction; the order that matters is the one under validationMu.
	tsCounter    atomic.Uint64
	txnIDCounter atomic.Uint64

	// validationMu is held for the whole commit critical section: validate,
	// apply writes, assign finish timestamp, append the history record.
	validationMu sync.Mutex

	historyMu sync.Mutex
	history   []committedTxnRecord

	// active tracks begun-but-unfinished transactions (id -> start ts) so GC
	// can compute the minimum start timestamp still in use.
	activeMu sync.Mutex
	active   map[uint64]uint64

	commitCount atomic.Uint64
}

func NewOCCManager(store storage.Storage) *OCCManager {
	return &OCCManager{
		store:  store,
		active: make(map[uint64]uint64),
	}
}

// Begin snapshots the timestamp counter without advancing it. The declared
// key set is ignored; OCC discovers conflicts at commit instead.
func (m *OCCManager) Begin(typeName string, keys []string) *Transaction {
	txn := newTransaction(m.txnIDCounter.Inc(), typeName)

	// Snapshot and registration happen under activeMu together, so a GC
	// computing the minimum active start timestamp either sees this
	// transaction or runs before its snapshot; either way no record this
	// transaction could conflict with is swept.
	m.activeMu.Lock()
	txn.StartTS = m.tsCounter.Load()
	m.active[txn.ID] = txn.StartTS
	m.activeMu.Unlock()
	return txn
}

func (m *OCCManager) Read(txn *Transaction, key string) (string, bool, error) {
	return txn.Read(key, m.store)
}

func (m *OCCManager) Write(txn *Transaction, key, value string) error {
	return txn.Write(key, value)
}

// validate reports whether txn can commit: it conflicts with any committed
// record whose writes became visible after txn started and overlap txn's
// read set.
func (m *OCCManager) validate(txn *Transaction) bool {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	for i := range m.history {
		rec := &m.history[i]
		if rec.finishTS <= txn.StartTS {
			continue
		}
		for key := range rec.writeKeys {
			if _, ok := txn.ReadSet[key]; ok {
				return false
			}
		}
	}
	return true
}

func (m *OCCManager) Commit(txn *Transaction) (CommitResult, error) {
	if txn.Status != StatusActive {
		return CommitResult{}, ErrTxnFinished{TxnID: txn.ID, Status: txn.Status}
	}

	m.validationMu.Lock()
	txn.ValidationTS = m.tsCounter.Inc()

	if !m.validate(txn) {
		txn.Status = StatusAborted
		m.validationMu.Unlock()
		m.deregister(txn.ID)
		return CommitResult{OK: false, TxnID: txn.ID, Retries: txn.RetryCount}, nil
	}

	for key, value := range txn.WriteSet {
		m.store.Put(key, value)
	}

	txn.FinishTS = m.tsCounter.Inc()
	txn.Status = StatusCommitted

	rec := committedTxnRecord{
		txnID:     txn.ID,
		finishTS:  txn.FinishTS,
		writeKeys: make(map[string]struct{}, len(txn.WriteSet)),
	}
	for key := range txn.WriteSet {
		rec.writeKeys[key] = struct{}{}
	}
	m.historyMu.Lock()
	m.history = append(m.history, rec)
	m.historyMu.Unlock()
	m.validationMu.Unlock()

	m.deregister(txn.ID)
	if m.commitCount.Inc()%occGCInterval == 0 {
		m.GarbageCollect(m.MinActiveStartTS())
	}
	return CommitResult{OK: true, TxnID: txn.ID, Retries: txn.RetryCount}, nil
}

func (m *OCCManager) Abort(txn *Transaction) {
	txn.Status = StatusAborted
	txn.clearSets()
	m.deregister(txn.ID)
}

func (m *OCCManager) ProtocolName() string {
	return "OCC"
}

func (m *OCCManager) deregister(txnID uint64) {
	m.activeMu.Lock()
	delete(m.active, txnID)
	m.activeMu.Unlock()
}

// MinActiveStartTS returns the smallest start timestamp among active
// transactions, or the current counter value if none are active. History
// records at or below it can never conflict with anything still running.
func (m *OCCManager) MinActiveStartTS() uint64 {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	if len(m.active) == 0 {
		return m.tsCounter.Load()
	}
	min := uint64(math.MaxUint64)
	for _, startTS := range m.active {
		if startTS < min {
			min = startTS
		}
	}
	return min
}

// GarbageCollect drops committed records whose finish timestamp is at or
// below minActiveStartTS. Safe to run concurrently with commits; the sweep
// holds only the history mutex and runs in one pass.
func (m *OCCManager) GarbageCollect(minActiveStartTS uint64) {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	kept := m.history[:0]
	for _, rec := range m.history {
		if rec.finishTS > minActiveStartTS {
			kept = append(kept, rec)
		}
	}
	if removed := len(m.history) - len(kept); removed > 0 {
		log.Debugf("occ gc removed %d of %d history records", removed, len(m.history))
	}
	m.history = kept
}

// HistoryLen is exposed for tests and diagnostics.
func (m *OCCManager) HistoryLen() int {
	m.historyMu.Lock()
	defer m.historyMu.Unlock()
	return len(m.history)
}
