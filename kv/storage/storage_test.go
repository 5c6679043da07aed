package storage

import (
	"fmt"
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pingcap-incubator/tinytxn/kv/config"
)

func newTestBadgerStorage(t *testing.T) (*BadgerStorage, func()) {
	dbPath, err := ioutil.TempDir("", "tinytxn_storage")
	require.NoError(t, err)

	conf := config.NewTestConfig()
	conf.DBPath = dbPath
	s := NewBadgerStorage(conf)
	require.NoError(t, s.Start())

	return s, func() {
		s.Stop()
		os.RemoveAll(dbPath)
	}
}

func TestBadgerRoundTrip(t *testing.T) {
	s, cleanup := newTestBadgerStorage(t)
	defer cleanup()

	_, ok := s.Get("a")
	assert.False(t, ok)

	assert.True(t, s.Put("a", "x"))
	val, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "x", val)

	assert.True(t, s.Put("a", "y"))
	val, _ = s.Get("a")
	assert.Equal(t, "y", val)

	assert.True(t, s.Delete("a"))
	_, ok = s.Get("a")
	assert.False(t, ok)
}

func TestBadgerInitializeWithData(t *testing.T) {
	s, cleanup := newTestBadgerStorage(t)
	defer cleanup()

	data := make(map[string]string)
	for i := 0; i < 100; i++ {
		data[fmt.Sprintf("account_%d", i)] = "1000"
	}
	require.NoError(t, s.InitializeWithData(data))
	assert.Equal(t, 100, s.KeyCount())

	val, ok := s.Get("account_42")
	assert.True(t, ok)
	assert.Equal(t, "1000", val)
}

func TestBadgerClear(t *testing.T) {
	s, cleanup := newTestBadgerStorage(t)
	defer cleanup()

	require.NoError(t, s.InitializeWithData(map[string]string{"a": "1", "b": "2"}))
	require.NoError(t, s.Clear())
	assert.Equal(t, 0, s.KeyCount())
	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestMemStorage(t *testing.T) {
	s := NewMemStorage()
	require.NoError(t, s.Start())
	defer s.Stop()

	_, ok := s.Get("k")
	assert.False(t, ok)

	s.Put("b", "2")
	s.Put("a", "1")
	s.Put("c", "3")
	assert.Equal(t, 3, s.Len())

	val, ok := s.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "2", val)

	// Ascending key order.
	var keys []string
	s.ForEach(func(key, value string) bool {
		keys = append(keys, key)
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	s.Delete("b")
	_, ok = s.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 2, s.Len())
}
