package statecache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/foldline/statecache/cache"
	"github.com/foldline/statecache/store"
)

// transitionRecord is the durable payload for one cached transition.
type transitionRecord struct {
	Target int `json:"target"`
}

// storeBacking adapts a store.Store to the cache.Backing contract. Loads run
// on the caller's goroutine; stores are fire-and-forget with their own
// context, so a cancelled lookup never aborts an in-flight persist.
type storeBacking struct {
	st     store.Store
	digest string
	log    *slog.Logger

	wg sync.WaitGroup
}

func newStoreBacking(st store.Store, digest string, log *slog.Logger) *storeBacking {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &storeBacking{st: st, digest: digest, log: log}
}

func (b *storeBacking) Load(ctx context.Context, key cache.Key) (int, bool) {
	hk, err := store.HashKey(b.digest, key.String())
	if err != nil {
		b.log.Error("hash cache key", slog.String("key", key.String()), slog.Any("error", err))
		return 0, false
	}
	rec, err := b.st.Get(ctx, hk)
	if err != nil {
		return 0, false
	}
	var tr transitionRecord
	if err := json.Unmarshal(rec.Data, &tr); err != nil {
		b.log.Warn("malformed transition record", slog.String("key", key.String()))
		return 0, false
	}
	return tr.Target, true
}

func (b *storeBacking) Store(_ context.Context, e cache.Entry) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		hk, err := store.HashKey(b.digest, e.Key.String())
		if err != nil {
			b.log.Error("hash cache key", slog.String("key", e.Key.String()), slog.Any("error", err))
			return
		}
		data, _ := json.Marshal(transitionRecord{Target: e.Target})
		rec := &store.Record{
			Data: data,
			Metadata: store.Metadata{
				Frequency: e.Frequency,
				Cost:      e.Cost,
			},
			Timestamp: e.CreatedAt.UnixMilli(),
		}
		if !e.ExpiresAt.IsZero() {
			rec.Expires = e.ExpiresAt.UnixMilli()
		}
		if err := b.st.Set(context.Background(), hk, rec); err != nil {
			b.log.Warn("persist transition", slog.String("key", e.Key.String()), slog.Any("error", err))
		}
	}()
}

// flush blocks until every in-flight persist has completed.
func (b *storeBacking) flush() {
	b.wg.Wait()
}
