// Package badgerindex stores managed records in BadgerDB.
package badgerindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/nuln/fsbox"
)

// maxTxnRetries bounds how often a transaction is replayed after
// badger.ErrConflict.
const maxTxnRetries = 5

// Options configures Open.
type Options struct {
	// Dir is the database directory. Empty selects in-memory mode.
	Dir        string
	SyncWrites bool
	Logger     logrus.FieldLogger
}

// Index is an fsbox.Index backed by BadgerDB. Records are stored as JSON
// under "addr:<address>"; "id:<id>" points back to the address.
type Index struct {
	db     *badger.DB
	logger logrus.FieldLogger
}

// Open opens the database described by opts.
func Open(opts Options) (*Index, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	badgerOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(newBadgerLogger(opts.Logger)).
		WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1)
	if opts.Dir == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	opts.Logger.WithField("path", opts.Dir).Info("BadgerDB record index initialized")
	return &Index{db: db, logger: opts.Logger}, nil
}

func addrKey(address string) []byte {
	return []byte("addr:" + address)
}

func idKey(id string) []byte {
	return []byte("id:" + id)
}

var addrPrefix = []byte("addr:")

// update runs fn in a read-write transaction, replaying it when a
// concurrent transaction touched the same keys. Running out of replays is
// contention, so it is reported as retryable.
func (x *Index) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = x.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", fsbox.ErrBackendUnavailable, err)
}

func (x *Index) Create(ctx context.Context, rec fsbox.Record) (*fsbox.Record, error) {
	rec = fsbox.PrepareRecord(rec)

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	err = x.update(func(txn *badger.Txn) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, key := range [][]byte{addrKey(rec.Address), idKey(rec.ID)} {
			_, err := txn.Get(key)
			if err == nil {
				return fmt.Errorf("%w: record for %q", fsbox.ErrConflict, rec.Address)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %v", fsbox.ErrBackendUnavailable, err)
			}
		}
		if err := txn.Set(addrKey(rec.Address), data); err != nil {
			return err
		}
		return txn.Set(idKey(rec.ID), []byte(rec.Address))
	})
	if err != nil {
		return nil, err
	}

	x.logger.WithFields(logrus.Fields{
		"address":   rec.Address,
		"record_id": rec.ID,
	}).Debug("Record created in index")
	return &rec, nil
}

func (x *Index) FindByAddress(ctx context.Context, address string) (*fsbox.Record, error) {
	var rec fsbox.Record
	err := x.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(addrKey(address))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fsbox.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", fsbox.ErrBackendUnavailable, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (x *Index) Delete(ctx context.Context, rec *fsbox.Record) error {
	return x.update(func(txn *badger.Txn) error {
		item, err := txn.Get(addrKey(rec.Address))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fsbox.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("%w: %v", fsbox.ErrBackendUnavailable, err)
		}
		var cur fsbox.Record
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cur)
		}); err != nil {
			return err
		}
		if cur.ID != rec.ID {
			return fsbox.ErrNotFound
		}
		if err := txn.Delete(addrKey(rec.Address)); err != nil {
			return err
		}
		return txn.Delete(idKey(rec.ID))
	})
}

func (x *Index) List(ctx context.Context) ([]*fsbox.Record, error) {
	var out []*fsbox.Record
	err := x.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = addrPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec fsbox.Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				x.logger.WithError(err).WithField("key", string(it.Item().Key())).Warn("Skipping unreadable record")
				continue
			}
			out = append(out, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (x *Index) Close() error {
	x.logger.Info("Closing BadgerDB record index")
	return x.db.Close()
}

// badgerLogger adapts logrus to BadgerDB's logger interface
type badgerLogger struct {
	logger logrus.FieldLogger
}

func newBadgerLogger(logger logrus.FieldLogger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf("[BadgerDB] "+format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf("[BadgerDB] "+format, args...)
}

var _ fsbox.Index = (*Index)(nil)
