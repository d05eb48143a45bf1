package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "statecache:rec:"

// Redis is the shared L3 alternative to the embedded store: records live
// under a key prefix with native TTLs, and a ZSET index scored by creation
// timestamp makes oldest-first compaction a range query.
type Redis struct {
	client *backend.Client
	prefix string
	opts   Options
	log    *slog.Logger
}

var _ Store = (*Redis)(nil)

type RedisOption func(*Redis)

// WithPrefix sets the key prefix for records and the index.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis connects a record store to the given Redis instance.
func NewRedis(addr, password string, db int, opts Options, ropts ...RedisOption) *Redis {
	client := backend.NewClient(&backend.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisFromClient(client, opts, ropts...)
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *backend.Client, opts Options, ropts ...RedisOption) *Redis {
	opts.normalize()
	r := &Redis{
		client: client,
		prefix: defaultRedisPrefix,
		opts:   opts,
		log:    opts.Logger,
	}
	for _, opt := range ropts {
		opt(r)
	}
	return r
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) indexKey() string {
	return r.prefix + "index"
}

func (r *Redis) Get(ctx context.Context, key string) (*Record, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ErrNotFound
		}
		r.log.Debug("redis read failed, treating as miss", slog.String("key", key), slog.String("error", err.Error()))
		return nil, ErrNotFound
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		r.log.Debug("dropping corrupt record", slog.String("key", key))
		_ = r.Delete(ctx, key)
		return nil, ErrNotFound
	}
	if rec.Expired(time.Now()) {
		_ = r.Delete(ctx, key)
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Set stores the record with a native TTL and indexes it by creation
// timestamp for compaction ordering.
func (r *Redis) Set(ctx context.Context, key string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	var ttl time.Duration
	if rec.Expires > 0 {
		ttl = time.Until(time.UnixMilli(rec.Expires))
		if ttl <= 0 {
			return nil
		}
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.key(key), data, ttl)
	pipe.ZAdd(ctx, r.indexKey(), backend.Z{
		Score:  float64(rec.Timestamp),
		Member: key,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	pipe := r.client.Pipeline()
	pipe.Del(ctx, r.key(key))
	pipe.ZRem(ctx, r.indexKey(), key)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *Redis) Len(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.indexKey()).Result()
	return int(n), err
}

// Prune reconciles the index against keys Redis already expired.
func (r *Redis) Prune(ctx context.Context) (int, error) {
	members, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, member := range members {
		exists, err := r.client.Exists(ctx, r.key(member)).Result()
		if err != nil {
			return removed, err
		}
		if exists == 0 {
			if err := r.client.ZRem(ctx, r.indexKey(), member).Err(); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

// Compact drops the oldest index range until utilization reaches the target.
func (r *Redis) Compact(ctx context.Context) (int, error) {
	n, err := r.Len(ctx)
	if err != nil {
		return 0, err
	}
	if !r.opts.shouldCompact(n) {
		return 0, nil
	}
	drop := n - r.opts.targetCount()
	if drop <= 0 {
		return 0, nil
	}

	oldest, err := r.client.ZRange(ctx, r.indexKey(), 0, int64(drop-1)).Result()
	if err != nil {
		return 0, err
	}
	pipe := r.client.Pipeline()
	for _, member := range oldest {
		pipe.Del(ctx, r.key(member))
		pipe.ZRem(ctx, r.indexKey(), member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	r.log.Debug("store compacted", slog.Int("removed", len(oldest)))
	return len(oldest), nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
