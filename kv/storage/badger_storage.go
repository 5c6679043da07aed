package storage

import (
	"github.com/coocood/badger"
	"github.com/juju/errors"
	"github.com/ngaut/log"

	"github.com/pingcap-incubator/tinytxn/kv/config"
)

// BadgerStorage is a Storage backed by a badger instance on disk. All state
// is stored locally; there is no replication.
type BadgerStorage struct {
	conf config.Config
	db   *badger.DB
}

func NewBadgerStorage(conf *config.Config) *BadgerStorage {
	return &BadgerStorage{conf: *conf}
}

func (s *BadgerStorage) Start() error {
	opts := badger.DefaultOptions
	opts.NumCompactors = 1
	opts.Dir = s.conf.DBPath
	opts.ValueDir = s.conf.DBPath
	db, err := badger.Open(opts)
	if err != nil {
		return errors.Trace(err)
	}
	s.db = db
	log.Infof("badger opened at %s", s.conf.DBPath)
	return nil
}

func (s *BadgerStorage) Stop() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.Trace(err)
}

func (s *BadgerStorage) Get(key string) (string, bool) {
	var value string
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		val, err := item.Value()
		if err != nil {
			return err
		}
		value = string(val)
		found = true
		return nil
	})
	if err != nil && err != badger.ErrKeyNotFound {
		// A read failure is reported as a miss; the protocols cannot tell
		// the difference through this interface.
		log.Errorf("get %s failed: %v", key, err)
	}
	return value, found
}

func (s *BadgerStorage) Put(key, value string) bool {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
	if err != nil {
		log.Errorf("put %s failed: %v", key, err)
		return false
	}
	return true
}

func (s *BadgerStorage) Delete(key string) bool {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		log.Errorf("delete %s failed: %v", key, err)
		return false
	}
	return true
}

// InitializeWithData preloads the store, one Put per pair.
func (s *BadgerStorage) InitializeWithData(data map[string]string) error {
	for k, v := range data {
		if !s.Put(k, v) {
			return errors.Errorf("failed to initialize key %s", k)
		}
	}
	log.Infof("initialized %d keys", len(data))
	return nil
}

// KeyCount scans the whole store and returns the number of live keys.
func (s *BadgerStorage) KeyCount() int {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		log.Errorf("key count failed: %v", err)
	}
	return count
}

// Clear deletes every key. Destructive; used by tests to reset the store.
func (s *BadgerStorage) Clear() error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return errors.Trace(err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
