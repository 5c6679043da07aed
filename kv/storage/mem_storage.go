package storage

import (
	"sync"

	"github.com/google/btree"
)

// MemStorage is a simple Storage backed by memory for testing. Data is not
// written to disk. Keys stay ordered so tests can scan them.
type MemStorage struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

type memItem struct {
	key   string
	value string
}

func (i memItem) Less(than btree.Item) bool {
	return i.key < than.(memItem).key
}

func NewMemStorage() *MemStorage {
	return &MemStorage{tree: btree.New(8)}
}

func (s *MemStorage) Start() error {
	return nil
}

func (s *MemStorage) Stop() error {
	return nil
}

func (s *MemStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := s.tree.Get(memItem{key: key})
	if result == nil {
		return "", false
	}
	return result.(memItem).value, true
}

func (s *MemStorage) Put(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.ReplaceOrInsert(memItem{key, value})
	return true
}

func (s *MemStorage) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Delete(memItem{key: key})
	return true
}

func (s *MemStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Len()
}

// ForEach visits every key/value in ascending key order.
func (s *MemStorage) ForEach(fn func(key, value string) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.tree.Ascend(func(i btree.Item) bool {
		item := i.(memItem)
		return fn(item.key, item.value)
	})
}
