package audit

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	dErrors "custodia/pkg/domain-errors"
)

// auditKeyPrefix scopes audit keys; a monotonic sequence suffix preserves
// append order under iteration.
const auditKeyPrefix = "audit/"

// BadgerStore persists audit events in BadgerDB. Keys are
// audit/<recordID>/<seq> so a prefix scan returns one record's trail
// oldest-first. Events are written once and never overwritten.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// storedEvent is the storage format. Details is a JSON-encoded string, the
// timestamp ISO-8601, matching the external audit event contract.
type storedEvent struct {
	ID          string `json:"id"`
	RecordID    string `json:"recordId"`
	Action      string `json:"action"`
	PerformedBy string `json:"performedBy"`
	Timestamp   string `json:"timestamp"`
	IPAddress   string `json:"ipAddress,omitempty"`
	UserAgent   string `json:"userAgent,omitempty"`
	Details     string `json:"details"`
}

// NewBadgerStore constructs a badger-backed audit store.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte("audit_seq"), 128)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not open audit sequence")
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

// Close releases the sequence lease. The caller owns the badger.DB.
func (s *BadgerStore) Close() error {
	return s.seq.Release()
}

func (s *BadgerStore) Append(_ context.Context, event Event) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return s.AppendTxn(txn, event)
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not append audit event")
	}
	return nil
}

// AppendTxn writes the event inside an existing badger transaction so callers
// can commit an audit append atomically with their own writes.
func (s *BadgerStore) AppendTxn(txn *badger.Txn, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	n, err := s.seq.Next()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not allocate audit sequence")
	}

	value, err := marshalStored(event)
	if err != nil {
		return err
	}
	return txn.Set(eventKey(event.RecordID, n), value)
}

func (s *BadgerStore) ListByRecord(_ context.Context, recordID string) ([]Event, error) {
	var events []Event
	prefix := []byte(auditKeyPrefix + recordID + "/")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var stored storedEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			})
			if err != nil {
				return err
			}
			event, err := unmarshalStored(stored)
			if err != nil {
				return err
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not read audit trail")
	}
	return events, nil
}

func (s *BadgerStore) CountByRecord(_ context.Context, recordID string) (int, error) {
	count := 0
	prefix := []byte(auditKeyPrefix + recordID + "/")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not count audit trail")
	}
	return count, nil
}

func eventKey(recordID string, seq uint64) []byte {
	key := make([]byte, 0, len(auditKeyPrefix)+len(recordID)+9)
	key = append(key, auditKeyPrefix...)
	key = append(key, recordID...)
	key = append(key, '/')
	key = binary.BigEndian.AppendUint64(key, seq)
	return key
}

func marshalStored(event Event) ([]byte, error) {
	details := "{}"
	if len(event.Details) > 0 {
		raw, err := json.Marshal(event.Details)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not encode audit details")
		}
		details = string(raw)
	}
	return json.Marshal(storedEvent{
		ID:          event.ID,
		RecordID:    event.RecordID,
		Action:      string(event.Action),
		PerformedBy: event.PerformedBy,
		Timestamp:   event.Timestamp.UTC().Format(time.RFC3339Nano),
		IPAddress:   event.IPAddress,
		UserAgent:   event.UserAgent,
		Details:     details,
	})
}

func unmarshalStored(stored storedEvent) (Event, error) {
	ts, err := time.Parse(time.RFC3339Nano, stored.Timestamp)
	if err != nil {
		return Event{}, fmt.Errorf("corrupt audit timestamp: %w", err)
	}
	var details map[string]string
	if stored.Details != "" && stored.Details != "{}" {
		if err := json.Unmarshal([]byte(stored.Details), &details); err != nil {
			return Event{}, fmt.Errorf("corrupt audit details: %w", err)
		}
	}
	return Event{
		ID:          stored.ID,
		RecordID:    stored.RecordID,
		Action:      Action(stored.Action),
		PerformedBy: stored.PerformedBy,
		Timestamp:   ts,
		IPAddress:   stored.IPAddress,
		UserAgent:   stored.UserAgent,
		Details:     details,
	}, nil
}
