// Package store implements the durable cache tier: content-hashed records in
// an embedded BadgerDB (default) or a shared Redis, with TTL pruning and
// oldest-first compaction. Corruption is never fatal; a record that fails to
// parse is dropped and reported as a miss.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// ErrNotFound reports a miss: the record does not exist, expired, or could
// not be parsed.
var ErrNotFound = errors.New("store: record not found")

// Metadata carries the weighting signals persisted alongside a record.
type Metadata struct {
	Frequency uint64  `json:"frequency,omitempty"`
	Cost      float64 `json:"costEstimate,omitempty"`
}

// Record is the persisted layout: one record per cache key.
type Record struct {
	Data      json.RawMessage `json:"data"`
	Metadata  Metadata        `json:"metadata"`
	Timestamp int64           `json:"timestamp"`         // unix milliseconds, creation time
	Expires   int64           `json:"expires,omitempty"` // unix milliseconds, 0 = never
}

// Expired reports whether the record's TTL deadline has passed.
func (r *Record) Expired(now time.Time) bool {
	return r.Expires > 0 && now.UnixMilli() > r.Expires
}

// Store is the durable backing contract. Get returns ErrNotFound for any
// recoverable condition; Set is expected to be called from a fire-and-forget
// goroutine, so slow writes never block cache lookups.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, rec *Record) error
	Delete(ctx context.Context, key string) error

	// Len counts live records.
	Len(ctx context.Context) (int, error)

	// Prune removes expired records, returning how many were dropped.
	Prune(ctx context.Context) (int, error)

	// Compact removes oldest records first until utilization falls to the
	// configured target, returning how many were dropped. A no-op while
	// utilization is below the trigger threshold.
	Compact(ctx context.Context) (int, error)

	Close() error
}

// Options tune capacity and compaction for any backend.
type Options struct {
	// MaxRecords is the nominal store capacity compaction ratios apply to.
	MaxRecords int

	// CompactionThreshold is the utilization ratio (0-1] that triggers
	// compaction.
	CompactionThreshold float64

	// CompactionTarget is the utilization ratio compaction drains down to.
	CompactionTarget float64

	Logger *slog.Logger
}

func (o *Options) normalize() {
	if o.MaxRecords <= 0 {
		o.MaxRecords = 100000
	}
	if o.CompactionThreshold <= 0 || o.CompactionThreshold > 1 {
		o.CompactionThreshold = 0.9
	}
	if o.CompactionTarget <= 0 || o.CompactionTarget >= o.CompactionThreshold {
		o.CompactionTarget = o.CompactionThreshold / 2
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

func (o *Options) shouldCompact(n int) bool {
	return float64(n) > o.CompactionThreshold*float64(o.MaxRecords)
}

func (o *Options) targetCount() int {
	return int(o.CompactionTarget * float64(o.MaxRecords))
}
