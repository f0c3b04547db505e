package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"

	"custodia/internal/crypto/fieldcipher"
	"custodia/internal/crypto/integrity"
	"custodia/internal/record/models"
	dErrors "custodia/pkg/domain-errors"
)

const recordKeyPrefix = "record/"

// BadgerStore persists records in BadgerDB under record/<id>. Each Save
// writes the full record in one badger transaction, so hash, envelopes, and
// grants are never observable out of step.
type BadgerStore struct {
	db *badger.DB
}

type storedGrant struct {
	Address         string  `json:"address"`
	AccessType      string  `json:"accessType"`
	GrantedAt       string  `json:"grantedAt"`
	ExpiresAt       *string `json:"expiresAt,omitempty"`
	Purpose         string  `json:"purpose"`
	ConsentObtained bool    `json:"consentObtained"`
}

type storedRecord struct {
	ID                string                           `json:"id"`
	Owner             string                           `json:"owner"`
	Protected         map[string]fieldcipher.Envelope  `json:"protectedFields"`
	Grants            []storedGrant                    `json:"accessControlEntries"`
	IntegrityHash     string                           `json:"integrityHash"`
	Metadata          map[string]string                `json:"stableMetadata,omitempty"`
	RetentionPeriodMS int64                            `json:"retentionPeriodMillis"`
	RetentionExpiry   string                           `json:"retentionExpiresAt,omitempty"`
	DeletionScheduled bool                             `json:"deletionScheduled"`
	ContentLocator    string                           `json:"retrievalLocator,omitempty"`
	ContentHash       string                           `json:"contentHash,omitempty"`
	CreatedAt         string                           `json:"createdAt"`
	UpdatedAt         string                           `json:"updatedAt"`
	Version           uint64                           `json:"version"`
}

// NewBadger constructs a badger-backed record store.
func NewBadger(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Save(_ context.Context, record *models.Record) error {
	value, err := json.Marshal(toStored(record))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not encode record")
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordKeyPrefix+record.ID), value)
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not save record")
	}
	return nil
}

func (s *BadgerStore) Get(_ context.Context, id string) (*models.Record, error) {
	var record *models.Record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			record, err = decodeStored(val)
			return err
		})
	})
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, ErrNotFound
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not read record")
	}
	return record, nil
}

func (s *BadgerStore) Delete(_ context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(recordKeyPrefix + id))
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not delete record")
	}
	return nil
}

func (s *BadgerStore) ListDeletionScheduled(_ context.Context) ([]*models.Record, error) {
	var out []*models.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				record, err := decodeStored(val)
				if err != nil {
					return err
				}
				if record.Retention.DeletionScheduled {
					out = append(out, record)
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "could not scan records")
	}
	return out, nil
}

func toStored(record *models.Record) storedRecord {
	stored := storedRecord{
		ID:                record.ID,
		Owner:             record.Owner,
		Protected:         record.Protected,
		IntegrityHash:     string(record.IntegrityHash),
		Metadata:          record.StableMetadata,
		RetentionPeriodMS: record.Retention.Period.Milliseconds(),
		DeletionScheduled: record.Retention.DeletionScheduled,
		ContentLocator:    record.ContentLocator,
		ContentHash:       record.ContentHash,
		CreatedAt:         record.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:         record.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Version:           record.Version,
	}
	if !record.Retention.ExpiresAt.IsZero() {
		stored.RetentionExpiry = record.Retention.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	for _, g := range record.Grants {
		sg := storedGrant{
			Address:         g.Grantee,
			AccessType:      string(g.Operation),
			GrantedAt:       g.GrantedAt.UTC().Format(time.RFC3339Nano),
			Purpose:         g.Purpose,
			ConsentObtained: g.ConsentObtained,
		}
		if g.ExpiresAt != nil {
			expiry := g.ExpiresAt.UTC().Format(time.RFC3339Nano)
			sg.ExpiresAt = &expiry
		}
		stored.Grants = append(stored.Grants, sg)
	}
	return stored
}

func decodeStored(val []byte) (*models.Record, error) {
	var stored storedRecord
	if err := json.Unmarshal(val, &stored); err != nil {
		return nil, err
	}

	record := &models.Record{
		ID:             stored.ID,
		Owner:          stored.Owner,
		Protected:      stored.Protected,
		IntegrityHash:  integrity.Digest(stored.IntegrityHash),
		StableMetadata: stored.Metadata,
		Retention: models.Retention{
			Period:            time.Duration(stored.RetentionPeriodMS) * time.Millisecond,
			DeletionScheduled: stored.DeletionScheduled,
		},
		ContentLocator: stored.ContentLocator,
		ContentHash:    stored.ContentHash,
		Version:        stored.Version,
	}
	if record.Protected == nil {
		record.Protected = make(map[string]fieldcipher.Envelope)
	}
	if record.StableMetadata == nil {
		record.StableMetadata = make(map[string]string)
	}

	var err error
	if record.CreatedAt, err = time.Parse(time.RFC3339Nano, stored.CreatedAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = time.Parse(time.RFC3339Nano, stored.UpdatedAt); err != nil {
		return nil, err
	}
	if stored.RetentionExpiry != "" {
		if record.Retention.ExpiresAt, err = time.Parse(time.RFC3339Nano, stored.RetentionExpiry); err != nil {
			return nil, err
		}
	}

	for _, sg := range stored.Grants {
		grant := models.AccessGrant{
			Grantee:         sg.Address,
			Operation:       models.Operation(sg.AccessType),
			Purpose:         sg.Purpose,
			ConsentObtained: sg.ConsentObtained,
		}
		if grant.GrantedAt, err = time.Parse(time.RFC3339Nano, sg.GrantedAt); err != nil {
			return nil, err
		}
		if sg.ExpiresAt != nil {
			expiry, err := time.Parse(time.RFC3339Nano, *sg.ExpiresAt)
			if err != nil {
				return nil, err
			}
			grant.ExpiresAt = &expiry
		}
		record.Grants = append(record.Grants, grant)
	}
	return record, nil
}
