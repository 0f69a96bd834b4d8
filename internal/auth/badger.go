package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/agentdesk/chatlink/internal/model"
)

// BadgerStore persists cached credentials in a local BadgerDB, so repeated
// sessions for the same subject skip the exchange.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadgerStore opens (or creates) a credential store at the given path.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore wraps an already-open BadgerDB.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func credentialKey(subjectID string) []byte {
	return []byte("credential:" + subjectID)
}

func (s *BadgerStore) Get(subjectID string) (model.Credential, bool, error) {
	var cred model.Credential
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(credentialKey(subjectID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cred)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return model.Credential{}, false, nil
	}
	if err != nil {
		return model.Credential{}, false, fmt.Errorf("get credential: %w", err)
	}
	return cred, true, nil
}

func (s *BadgerStore) Put(cred model.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(credentialKey(cred.SubjectID), data)
	})
	if err != nil {
		return fmt.Errorf("put credential: %w", err)
	}
	return nil
}

func (s *BadgerStore) Clear(subjectID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(credentialKey(subjectID))
	})
	if err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}
