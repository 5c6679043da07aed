package txn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingcap-incubator/tinytxn/kv/storage"
)

func newTwoPLStore() (*TwoPLManager, *storage.MemStorage) {
	store := storage.NewMemStorage()
	return NewTwoPLManager(store, 50), store
}

func TestTwoPLCommitAlwaysSucceeds(t *testing.T) {
	m, store := newTwoPLStore()
	store.Put("k1", "100")

	for i := 0; i < 10; i++ {
		txn := m.Begin("test", []string{"k1"})
		val, ok, err := m.Read(txn, "k1")
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, m.Write(txn, "k1", val+"x"))
		result, err := m.Commit(txn)
		require.NoError(t, err)
		assert.True(t, result.OK)
	}
}

func TestTwoPLBufferedWritesInvisibleUntilCommit(t *testing.T) {
	m, store := newTwoPLStore()
	store.Put("k1", "100")

	txn := m.Begin("test", []string{"k1"})
	require.NoError(t, m.Write(txn, "k1", "200"))

	stored, _ := store.Get("k1")
	assert.Equal(t, "100", stored)

	_, err := m.Commit(txn)
	require.NoError(t, err)
	stored, _ = store.Get("k1")
	assert.Equal(t, "200", stored)
}

func TestTwoPLLockBlocking(t *testing.T) {
	m, _ := newTwoPLStore()

	a := m.Begin("test", []string{"k1", "k2"})
	assert.Equal(t, a.ID, m.LockTable().Holder("k1"))

	acquired := make(chan *Transaction, 1)
	go func() {
		acquired <- m.Begin("test", []string{"k2"})
	}()

	// B needs k2, held by A: it must stay in its acquisition loop.
	select {
	case <-acquired:
		t.Fatal("acquired a held lock")
	case <-time.After(50 * time.Millisecond):
	}

	result, err := m.Commit(a)
	require.NoError(t, err)
	require.True(t, result.OK)

	select {
	case b := <-acquired:
		assert.True(t, b.RetryCount > 0)
		result, err := m.Commit(b)
		require.NoError(t, err)
		assert.True(t, result.OK)
		assert.Equal(t, uint64(0), m.LockTable().Holder("k2"))
	case <-time.After(5 * time.Second):
		t.Fatal("lock never released")
	}
}

func TestTwoPLAbortReleasesLocks(t *testing.T) {
	m, store := newTwoPLStore()
	store.Put("k1", "100")

	txn := m.Begin("test", []string{"k1"})
	_, _, err := m.Read(txn, "k1")
	require.NoError(t, err)
	require.NoError(t, m.Write(txn, "k1", "999"))

	m.Abort(txn)
	assert.Equal(t, StatusAborted, txn.Status)
	assert.Empty(t, txn.ReadSet)
	assert.Empty(t, txn.WriteSet)
	assert.Equal(t, uint64(0), m.LockTable().Holder("k1"))

	// Nothing leaked into the store.
	stored, _ := store.Get("k1")
	assert.Equal(t, "100", stored)

	// The keys are immediately reacquirable.
	other := m.Begin("test", []string{"k1"})
	assert.Equal(t, 0, other.RetryCount)
	m.Abort(other)
}

func TestTwoPLTimestampsUnused(t *testing.T) {
	m, _ := newTwoPLStore()

	txn := m.Begin("test", []string{"k1"})
	_, err := m.Commit(txn)
	require.NoError(t, err)

	assert.Zero(t, txn.StartTS)
	assert.Zero(t, txn.ValidationTS)
	assert.Zero(t, txn.FinishTS)
}
