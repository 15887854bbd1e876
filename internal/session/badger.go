// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var badgerKeyPrefix = []byte("sess:")

// BadgerStore keeps sessions in an embedded Badger database. Entries carry a
// TTL so Badger drops them even without a sweep.
type BadgerStore struct {
	db     *badger.DB
	maxAge time.Duration
	now    Clock
}

// OpenBadgerStore opens (or creates) the database at path. An empty path
// opens an in-memory database.
func OpenBadgerStore(path string, maxAge time.Duration) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &BadgerStore{db: db, maxAge: maxAge, now: time.Now}, nil
}

func badgerKey(id string) []byte {
	return append(append([]byte{}, badgerKeyPrefix...), id...)
}

func (s *BadgerStore) Set(_ context.Context, id string, sess Session) error {
	v, err := prepare(id, sess, s.now())
	if err != nil {
		return err
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(badgerKey(id), buf).WithTTL(s.maxAge))
	})
}

func (s *BadgerStore) Get(_ context.Context, id string) (Session, error) {
	var v Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("badger get: %w", err)
	}
	if expired(v, s.now(), s.maxAge) {
		return Session{}, ErrNotFound
	}
	return v, nil
}

func (s *BadgerStore) Has(ctx context.Context, id string) (bool, error) {
	_, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *BadgerStore) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(badgerKey(id))
	})
}

func (s *BadgerStore) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	now := s.now()
	var stale [][]byte

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: badgerKeyPrefix, PrefetchValues: true, PrefetchSize: 32})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var v Session
			err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil || now.Sub(v.CreatedAt) > maxAge {
				stale = append(stale, item.KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("badger scan: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range stale {
		if err := wb.Delete(k); err != nil {
			return 0, fmt.Errorf("badger delete: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("badger flush: %w", err)
	}
	return len(stale), nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}
