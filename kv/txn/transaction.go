package txn

import (
	"time"

	"github.com/pingcap-incubator/tinytxn/kv/storage"
)

// Status is the lifecycle state of a transaction. ACTIVE transitions to
// COMMITTED or ABORTED; both are absorbing.
type Status int

const (
	StatusActive Status = iota
	StatusCommitted
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusCommitted:
		return "COMMITTED"
	case StatusAborted:
		return "ABORTED"
	}
	return "UNKNOWN"
}

// Transaction groups the private state of one transaction: the values it
// observed, the writes it has buffered, and its identifiers. It is owned
// exclusively by one worker goroutine between Begin and Commit/Abort; the
// managers never share it across goroutines.
type Transaction struct {
	ID       uint64
	TypeName string

	// Timestamps drawn from the OCC manager's counter. Left at zero under 2PL.
	StartTS      uint64
	ValidationTS uint64
	FinishTS     uint64

	Status Status

	// ReadSet maps each key to the value observed at first read. Reads of
	// absent keys are not recorded.
	ReadSet map[string]string
	// WriteSet maps each key to its pending value, last write wins.
	WriteSet map[string]string

	// LockKeys is the key set declared at Begin under 2PL; empty under OCC.
	LockKeys []string

	// WallStart is stamped when Begin creates this transaction object. Every
	// retry begins a new object, so it covers only this attempt; the executor
	// measures end-to-end latency across retries with its own clock.
	WallStart time.Time

	RetryCount int
}

func newTransaction(id uint64, typeName string) *Transaction {
	return &Transaction{
		ID:        id,
		TypeName:  typeName,
		Status:    StatusActive,
		ReadSet:   make(map[string]string),
		WriteSet:  make(map[string]string),
		WallStart: time.Now(),
	}
}

// Read returns the value visible to this transaction. The write buffer is
// consulted first so a transaction always reads its own writes; otherwise the
// store is read and the observed value recorded in the read set. A miss
// records nothing: reads of absent keys do not participate in validation, so
// a concurrent creation of the key is not a conflict.
func (txn *Transaction) Read(key string, store storage.Storage) (string, bool, error) {
	if txn.Status != StatusActive {
		return "", false, ErrTxnFinished{TxnID: txn.ID, Status: txn.Status}
	}
	if val, ok := txn.WriteSet[key]; ok {
		txn.ReadSet[key] = val
		return val, true, nil
	}
	val, ok := store.Get(key)
	if ok {
		txn.ReadSet[key] = val
	}
	return val, ok, nil
}

// Write buffers the value; the store is untouched until commit.
func (txn *Transaction) Write(key, value string) error {
	if txn.Status != StatusActive {
		return ErrTxnFinished{TxnID: txn.ID, Status: txn.Status}
	}
	txn.WriteSet[key] = value
	return nil
}

func (txn *Transaction) clearSets() {
	txn.ReadSet = make(map[string]string)
	txn.WriteSet = make(map[string]string)
}
