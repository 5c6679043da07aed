package txn

import (
	"math/rand"
	"time"

	"go.uber.org/atomic"

	"github.com/pingcap-incubator/tinytxn/kv/storage"
)

// backoffRetryCap bounds the exponent so high retry counts cannot produce
// pathological sleeps.
const backoffRetryCap = 10

// TwoPLManager runs conservative two-phase locking: Begin acquires exclusive
// locks on the transaction's entire declared key set before any operation
// executes, and every lock is held until commit or abort. The hold phase is
// the whole transaction lifetime, so serializability follows directly from
// the lock table. Commits never fail; there is nothing left to validate.
type TwoPLManager struct {
	store storage.Storage
	locks *LockTable

	txnIDCounter atomic.Uint64

	baseBackoffUs int
}

func NewTwoPLManager(store storage.Storage, baseBackoffUs int) *TwoPLManager {
	return &TwoPLManager{
		store:         store,
		locks:         NewLockTable(),
		baseBackoffUs: baseBackoffUs,
	}
}

// Begin blocks until every key in keys is locked for the new transaction,
// sleeping between attempts with capped exponential backoff plus jitter.
//
// keys must be a superset of every key the transaction will go on to read or
// write. The manager does not check this; an under-declared key set silently
// breaks serializability.
func (m *TwoPLManager) Begin(typeName string, keys []string) *Transaction {
	txn := newTransaction(m.txnIDCounter.Inc(), typeName)
	txn.LockKeys = keys

	retry := 0
	for !m.locks.TryAcquireAll(txn.ID, keys) {
		backoffUs := m.baseBackoffUs * (1 << uint(minInt(retry, backoffRetryCap)))
		sleepUs := backoffUs
		if half := backoffUs / 2; half > 0 {
			sleepUs += rand.Intn(half + 1)
		}
		time.Sleep(time.Duration(sleepUs) * time.Microsecond)
		retry++
	}
	txn.RetryCount = retry
	return txn
}

// Read may touch the store without taking any lock here: every key the
// transaction touches was locked at Begin.
func (m *TwoPLManager) Read(txn *Transaction, key string) (string, bool, error) {
	return txn.Read(key, m.store)
}

func (m *TwoPLManager) Write(txn *Transaction, key, value string) error {
	return txn.Write(key, value)
}

// Commit applies the buffered writes and then enters the shrinking phase,
// releasing every lock at once. It always succeeds.
func (m *TwoPLManager) Commit(txn *Transaction) (CommitResult, error) {
	if txn.Status != StatusActive {
		return CommitResult{}, ErrTxnFinished{TxnID: txn.ID, Status: txn.Status}
	}

	for key, value := range txn.WriteSet {
		m.store.Put(key, value)
	}
	txn.Status = StatusCommitted
	m.locks.ReleaseAll(txn.ID, txn.LockKeys)

	return CommitResult{OK: true, TxnID: txn.ID, Retries: txn.RetryCount}, nil
}

// Abort is only ever caller-initiated; the protocol itself never aborts.
func (m *TwoPLManager) Abort(txn *Transaction) {
	txn.Status = StatusAborted
	txn.clearSets()
	m.locks.ReleaseAll(txn.ID, txn.LockKeys)
}

func (m *TwoPLManager) ProtocolName() string {
	return "2PL"
}

// LockTable exposes the table for tests.
func (m *TwoPLManager) LockTable() *LockTable {
	return m.locks
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
