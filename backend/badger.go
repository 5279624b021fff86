// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package backend

import (
	"context"
	"time"

	"github.com/cockroachdb/blockcache/internal/base"
	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
)

// Badger is a Backend persisted in a badger database. Expiry uses badger's
// per-entry TTL.
type Badger struct {
	db    *badger.DB
	owned bool
}

var _ Backend = (*Badger)(nil)

// BadgerOptions configures OpenBadger.
type BadgerOptions struct {
	// Dir is the database directory. It is ignored when InMemory is set.
	Dir      string
	InMemory bool
	// Logger receives badger's own log output. Nil silences it.
	Logger base.Logger
}

// OpenBadger opens (creating if needed) a badger database. The returned
// backend owns the database and closes it on Close.
func OpenBadger(o BadgerOptions) (*Badger, error) {
	opts := badger.DefaultOptions(o.Dir)
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	if o.Logger != nil {
		opts.Logger = badgerLogger{o.Logger}
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "opening badger cache at %q", o.Dir)
	}
	return &Badger{db: db, owned: true}, nil
}

// NewBadger wraps an open database. The caller keeps ownership of db.
func NewBadger(db *badger.DB) *Badger {
	return &Badger{db: db}
}

// Get implements Backend.
func (b *Badger) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading %q", key)
	}
	return value, true, nil
}

// Set implements Backend.
func (b *Badger) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := badger.NewEntry([]byte(key), value)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return errors.Wrapf(b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(e)
	}), "writing %q", key)
}

// Delete implements Backend.
func (b *Badger) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Wrapf(b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	}), "deleting %q", key)
}

// Keys returns every live key with the given prefix.
func (b *Badger) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// Close closes the database if the backend owns it.
func (b *Badger) Close() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}

// badgerLogger adapts a base.Logger to badger's logger interface. Badger's
// warnings are logged at info level and its debug output is dropped.
type badgerLogger struct {
	base.Logger
}

func (l badgerLogger) Warningf(format string, args ...interface{}) { l.Infof(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   {}
