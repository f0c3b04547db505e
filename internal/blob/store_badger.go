package blob

import (
	"context"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	dErrors "custodia/pkg/domain-errors"
)

const (
	blobKeyPrefix = "blob/"
	locatorScheme = "blob://"
)

// BadgerStore keeps content in BadgerDB. It stands in for the external
// content-addressable store in single-process deployments; the locator format
// is opaque to every caller.
type BadgerStore struct {
	db *badger.DB
}

// NewBadger constructs a badger-backed blob store.
func NewBadger(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Put(_ context.Context, content []byte) (string, error) {
	if len(content) == 0 {
		return "", dErrors.New(dErrors.CodeValidation, "content required")
	}
	id := uuid.New().String()
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(blobKeyPrefix+id), content)
	})
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not store content")
	}
	return locatorScheme + id, nil
}

func (s *BadgerStore) Get(_ context.Context, locator string) ([]byte, error) {
	id, ok := strings.CutPrefix(locator, locatorScheme)
	if !ok || id == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "malformed locator")
	}
	var content []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(blobKeyPrefix + id))
		if err != nil {
			return err
		}
		content, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, ErrNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not read content")
	}
	return content, nil
}
