// internal/storage/badger_store.go
package storage

import (
	"encoding/json"
	"fmt"

	"remapper/internal/errors"

	"github.com/dgraph-io/badger/v4"
)

// Entity represents any storable entity with an ID
type Entity interface {
	GetID() string
}

// BadgerStore keeps JSON-encoded entities under "<prefix>:<id>" keys.
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore(db *badger.DB, prefix string) *BadgerStore {
	return &BadgerStore{
		db:     db,
		prefix: prefix,
	}
}

func (s *BadgerStore) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *BadgerStore) Create(entity Entity) error {
	if entity.GetID() == "" {
		return errors.ValidationError("entity ID cannot be empty", nil)
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("marshaling entity: %w", err)
	}

	key := s.makeKey(entity.GetID())
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return errors.ValidationError(fmt.Sprintf("entity already exists: %s", entity.GetID()), entity.GetID())
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		return txn.Set(key, data)
	})
}

func (s *BadgerStore) Get(id string, entity Entity) error {
	key := s.makeKey(id)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, entity)
		})
	})

	if err == badger.ErrKeyNotFound {
		return errors.NotFound(fmt.Sprintf("%s not found: %s", s.prefix, id))
	}
	return err
}

func (s *BadgerStore) Delete(id string) error {
	key := s.makeKey(id)

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return errors.NotFound(fmt.Sprintf("%s not found: %s", s.prefix, id))
		} else if err != nil {
			return err
		}

		return txn.Delete(key)
	})
}

// List decodes every entity under the prefix into results, which must be a
// pointer to a slice.
func (s *BadgerStore) List(results interface{}) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(s.prefix + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		values := make([]json.RawMessage, 0)
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				values = append(values, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
		}

		data, err := json.Marshal(values)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, results)
	})

	if err != nil {
		return fmt.Errorf("listing %s entries: %w", s.prefix, err)
	}
	return nil
}
