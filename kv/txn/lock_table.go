package txn

import (
	"sync"
)

// LockTable is an exclusive per-key lock map with all-or-nothing acquisition.
// There is one lock per user key and only one holder at a time. Acquisition
// is atomic over the whole key set: either every key is locked for the caller
// or none is, so no partial-lock state is ever observable and deadlock cannot
// arise. Two transactions can still repeatedly poach each other's keys; the
// 2PL manager's randomized backoff breaks that livelock.
//
// Access to the table is guarded by a single mutex. Since the mutex is a
// global lock it would cause intolerable contention in a real system.
type LockTable struct {
	mu    sync.Mutex
	table map[string]uint64 // key -> holder txn id, absent or 0 means free
}

func NewLockTable() *LockTable {
	return &LockTable{table: make(map[string]uint64)}
}

// TryAcquireAll locks every key for txnID, or locks nothing and returns false
// if any key is already held. One mutex acquisition, O(len(keys)).
func (lt *LockTable) TryAcquireAll(txnID uint64, keys []string) bool {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	for _, key := range keys {
		if holder, ok := lt.table[key]; ok && holder != 0 {
			return false
		}
	}
	for _, key := range keys {
		lt.table[key] = txnID
	}
	return true
}

// ReleaseAll frees every key held by txnID. Keys held by another transaction
// are left untouched.
func (lt *LockTable) ReleaseAll(txnID uint64, keys []string) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	for _, key := range keys {
		if holder, ok := lt.table[key]; ok && holder == txnID {
			delete(lt.table, key)
		}
	}
}

// Holder returns the owning txn id for key, or 0 if the key is free.
func (lt *LockTable) Holder(key string) uint64 {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.table[key]
}
