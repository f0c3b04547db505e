package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"

	"custodia/internal/audit"
	"custodia/internal/consent/models"
	dErrors "custodia/pkg/domain-errors"
)

const consentKeyPrefix = "consent/"

// BadgerStore persists consent records in BadgerDB. Keys are
// consent/<subject>/<type>/<seq>, and the paired audit event is written in
// the same badger transaction, so the two appends commit or fail together.
type BadgerStore struct {
	db       *badger.DB
	seq      *badger.Sequence
	auditLog *audit.BadgerStore
}

// storedRecord is the consent storage format.
type storedRecord struct {
	ID           string `json:"id"`
	SubjectID    string `json:"subjectId"`
	ConsentType  string `json:"consentType"`
	ConsentGiven bool   `json:"consentGiven"`
	Timestamp    string `json:"timestamp"`
	Context      string `json:"context,omitempty"`
}

// NewBadger constructs a badger-backed consent store sharing the audit
// store's database so pair-appends are transactional.
func NewBadger(db *badger.DB, auditLog *audit.BadgerStore) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte("consent_seq"), 128)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not open consent sequence")
	}
	return &BadgerStore{db: db, seq: seq, auditLog: auditLog}, nil
}

// Close releases the sequence lease. The caller owns the badger.DB.
func (s *BadgerStore) Close() error {
	return s.seq.Release()
}

func (s *BadgerStore) Append(_ context.Context, record *models.Record, event audit.Event) error {
	n, err := s.seq.Next()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not allocate consent sequence")
	}

	value, err := json.Marshal(storedRecord{
		ID:           record.ID,
		SubjectID:    record.Subject,
		ConsentType:  string(record.Type),
		ConsentGiven: record.Granted,
		Timestamp:    record.Timestamp.UTC().Format(time.RFC3339Nano),
		Context:      record.Context,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not encode consent record")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(recordKey(record.Subject, record.Type, n), value); err != nil {
			return err
		}
		return s.auditLog.AppendTxn(txn, event)
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not append consent record")
	}
	return nil
}

func (s *BadgerStore) Latest(ctx context.Context, subject string, ctype models.Type) (*models.Record, error) {
	records, err := s.History(ctx, subject, ctype)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}

	latest := records[0]
	for _, r := range records[1:] {
		if r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	return latest, nil
}

func (s *BadgerStore) History(_ context.Context, subject string, ctype models.Type) ([]*models.Record, error) {
	var records []*models.Record
	prefix := []byte(consentKeyPrefix + subject + "/" + string(ctype) + "/")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var stored storedRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			})
			if err != nil {
				return err
			}
			ts, err := time.Parse(time.RFC3339Nano, stored.Timestamp)
			if err != nil {
				return err
			}
			records = append(records, &models.Record{
				ID:        stored.ID,
				Subject:   stored.SubjectID,
				Type:      models.Type(stored.ConsentType),
				Granted:   stored.ConsentGiven,
				Timestamp: ts,
				Context:   stored.Context,
			})
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not read consent history")
	}
	return records, nil
}

func recordKey(subject string, ctype models.Type, seq uint64) []byte {
	key := make([]byte, 0, len(consentKeyPrefix)+len(subject)+len(ctype)+10)
	key = append(key, consentKeyPrefix...)
	key = append(key, subject...)
	key = append(key, '/')
	key = append(key, ctype...)
	key = append(key, '/')
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}
