package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig configures the embedded BadgerDB backend.
type BadgerConfig struct {
	// Dir is the cache directory. Required unless InMemory is set.
	Dir string

	// InMemory keeps everything off disk; useful for tests.
	InMemory bool

	// SyncWrites trades write latency for durability.
	SyncWrites bool

	Store Options
}

// Badger is the default L3: an embedded, content-hash keyed record store in
// the configured cache directory.
type Badger struct {
	db   *badger.DB
	opts Options
	log  *slog.Logger
}

var _ Store = (*Badger)(nil)

// badgerLogger adapts slog onto BadgerDB's logger interface.
type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

// OpenBadger opens (creating if necessary) the store directory.
func OpenBadger(cfg BadgerConfig) (*Badger, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, errors.New("store: cacheDir is required for a persistent badger store")
	}
	cfg.Store.normalize()

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithLogger(&badgerLogger{log: cfg.Store.Logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &Badger{db: db, opts: cfg.Store, log: cfg.Store.Logger}, nil
}

// Get fetches a record. Corrupt or expired records are dropped and reported
// as ErrNotFound; persistence problems degrade to misses, never errors that
// stop the caller.
func (b *Badger) Get(ctx context.Context, key string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		b.log.Debug("badger read failed, treating as miss", slog.String("key", key), slog.String("error", err.Error()))
		return nil, ErrNotFound
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		b.log.Debug("dropping corrupt record", slog.String("key", key))
		_ = b.Delete(ctx, key)
		return nil, ErrNotFound
	}
	if rec.Expired(time.Now()) {
		_ = b.Delete(ctx, key)
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Set writes a record through, with Badger's native TTL mirroring the
// record's expiry. A record that is already expired is not persisted.
func (b *Badger) Set(ctx context.Context, key string, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	entry := badger.NewEntry([]byte(key), data)
	if rec.Expires > 0 {
		ttl := time.Until(time.UnixMilli(rec.Expires))
		if ttl <= 0 {
			return nil
		}
		entry = entry.WithTTL(ttl)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(entry)
	})
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (b *Badger) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (b *Badger) Len(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	count := 0
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Prune drops records whose embedded expiry passed. Badger's own TTL covers
// records written through Set; this sweep also catches records imported
// without one.
func (b *Badger) Prune(ctx context.Context) (int, error) {
	now := time.Now()
	expired, err := b.collect(ctx, func(rec *Record) bool {
		return rec.Expired(now)
	})
	if err != nil {
		return 0, err
	}
	return b.deleteKeys(expired)
}

// Compact removes oldest records (by creation timestamp) until utilization
// drops to the configured target ratio.
func (b *Badger) Compact(ctx context.Context) (int, error) {
	all, err := b.collect(ctx, func(*Record) bool { return true })
	if err != nil {
		return 0, err
	}
	if !b.opts.shouldCompact(len(all)) {
		return 0, nil
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].timestamp < all[j].timestamp
	})
	drop := len(all) - b.opts.targetCount()
	if drop <= 0 {
		return 0, nil
	}
	removed, err := b.deleteKeys(all[:drop])
	if err != nil {
		return removed, err
	}
	b.log.Debug("store compacted", slog.Int("removed", removed))
	return removed, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

type keyedRecord struct {
	key       []byte
	timestamp int64
}

// collect scans every record, returning the keys matching the predicate.
// Unparsable records always match; compaction and pruning are where they get
// cleaned out.
func (b *Badger) collect(ctx context.Context, match func(*Record) bool) ([]keyedRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []keyedRecord
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			raw, err := item.ValueCopy(nil)
			if err != nil {
				continue
			}
			var rec Record
			if err := json.Unmarshal(raw, &rec); err != nil {
				out = append(out, keyedRecord{key: item.KeyCopy(nil)})
				continue
			}
			if match(&rec) {
				out = append(out, keyedRecord{key: item.KeyCopy(nil), timestamp: rec.Timestamp})
			}
		}
		return nil
	})
	return out, err
}

func (b *Badger) deleteKeys(keys []keyedRecord) (int, error) {
	removed := 0
	for _, k := range keys {
		err := b.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(k.key)
		})
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
