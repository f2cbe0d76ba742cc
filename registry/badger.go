package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

const encoderKeyPrefix = "encoder:"

// BadgerRegistry is the production Registry, a local embedded store that stays available
// independent of the Job Store Gateway (spec §4.7 fail-open semantics).
type BadgerRegistry struct {
	db *badger.DB
}

var _ Registry = (*BadgerRegistry)(nil)

// OpenBadgerRegistry opens (creating if absent) the registry at path.
func OpenBadgerRegistry(path string) (*BadgerRegistry, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening encoder registry at %s: %w", path, err)
	}
	return &BadgerRegistry{db: db}, nil
}

func encoderKey(did string) []byte {
	return []byte(encoderKeyPrefix + did)
}

func (r *BadgerRegistry) Get(did string) (*Encoder, error) {
	var e Encoder
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(encoderKey(did))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting encoder %s: %w", did, err)
	}
	return &e, nil
}

func (r *BadgerRegistry) Put(e Encoder) error {
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshalling encoder %s: %w", e.EncoderID, err)
	}
	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(encoderKey(e.EncoderID), val)
	})
	if err != nil {
		return fmt.Errorf("storing encoder %s: %w", e.EncoderID, err)
	}
	return nil
}

// Touch stamps last_seen on the encoder row. Missing rows are not an error: a heartbeat
// from an unregistered DID is an authorization concern, not a registry-write concern.
func (r *BadgerRegistry) Touch(did string, now time.Time) error {
	return r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(encoderKey(did))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var e Encoder
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		}); err != nil {
			return err
		}

		e.LastSeen = &now
		val, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return txn.Set(encoderKey(did), val)
	})
}

func (r *BadgerRegistry) Close() error {
	return r.db.Close()
}
