// Package cache implements the tiered transition cache: a hot (L1) and warm
// (L2) in-memory tier with pluggable eviction, frequency buckets, TTL expiry
// and adaptive sizing, backed by an optional durable third tier.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Backing is the durable third tier. Load is consulted after both in-memory
// tiers miss; Store is the write-through path and must not block the caller
// (implementations persist on their own goroutine, fire-and-forget).
type Backing interface {
	Load(ctx context.Context, key Key) (target int, ok bool)
	Store(ctx context.Context, e Entry)
}

// Config parameterizes one TieredCache. One configurable cache replaces the
// basic/enhanced/advanced trio of the original design.
type Config struct {
	// MaxSize is the initial L1 capacity. Required.
	MaxSize int

	// L2Size is the warm tier capacity; 0 disables L2 entirely.
	L2Size int

	// TTL is the entry lifetime; 0 disables expiry.
	TTL time.Duration

	Strategy Strategy

	// AdaptiveSize enables hit-ratio driven capacity adjustment. HighWater
	// and LowWater must then be set explicitly; there are no implied
	// defaults.
	AdaptiveSize bool
	HighWater    float64
	LowWater     float64

	// MinSize and MaxCapacity bound adaptive shrinking and growth.
	MinSize     int
	MaxCapacity int

	SweepInterval  time.Duration
	ResizeInterval time.Duration

	// Prefetch warms transitions historically observed to follow a hit's
	// target state, asynchronously.
	Prefetch bool

	Backing Backing
	Logger  *slog.Logger
}

func (cfg *Config) validate() error {
	if cfg.MaxSize <= 0 {
		return errors.New("cache: maxSize must be positive")
	}
	if cfg.L2Size < 0 {
		return errors.New("cache: l2Size must not be negative")
	}
	if cfg.Strategy == "" {
		cfg.Strategy = LRU
	}
	if _, err := ParseStrategy(string(cfg.Strategy)); err != nil {
		return err
	}
	if cfg.AdaptiveSize {
		if cfg.HighWater <= 0 || cfg.HighWater > 1 {
			return errors.New("cache: adaptive sizing requires hitRatioHighWater in (0,1]")
		}
		if cfg.LowWater <= 0 || cfg.LowWater >= cfg.HighWater {
			return errors.New("cache: adaptive sizing requires hitRatioLowWater in (0,highWater)")
		}
		if cfg.MinSize <= 0 || cfg.MinSize > cfg.MaxSize {
			return fmt.Errorf("cache: minSize must be in [1,%d]", cfg.MaxSize)
		}
		if cfg.MaxCapacity < cfg.MaxSize {
			return errors.New("cache: maxCapacity must be at least maxSize")
		}
	}
	return nil
}

// TieredCache maps (state id, symbol) to target state ids. All in-memory
// operations are atomic with respect to each other; durable reads and writes
// happen outside the lock so pending I/O never blocks other cache operations.
type TieredCache struct {
	mu      sync.Mutex
	cfg     Config
	log     *slog.Logger
	l1      *tier
	l2      *tier // nil when disabled
	backing Backing

	// Cumulative counters plus a rolling window for the adaptive check.
	lookups, hits   uint64
	wLookups, wHits uint64

	followers map[int][]Key

	sweeper *runner
	resizer *runner
	closed  bool
}

// New builds the cache and starts its background runners.
func New(cfg Config) (*TieredCache, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	c := &TieredCache{
		cfg:       cfg,
		log:       log,
		l1:        newTier("l1", cfg.MaxSize, newPolicy(cfg.Strategy)),
		backing:   cfg.Backing,
		followers: make(map[int][]Key),
	}
	if cfg.L2Size > 0 {
		c.l2 = newTier("l2", cfg.L2Size, newPolicy(cfg.Strategy))
	}
	capacityGauge.Set(float64(cfg.MaxSize))

	if cfg.TTL > 0 && cfg.SweepInterval > 0 {
		c.sweeper = newRunner(cfg.SweepInterval, c.sweepExpired)
		c.sweeper.start()
	}
	if cfg.AdaptiveSize && cfg.ResizeInterval > 0 {
		c.resizer = newRunner(cfg.ResizeInterval, c.resizeCheck)
		c.resizer.start()
	}
	return c, nil
}

// Get looks up the cached target for (state, symbol): L1, then L2, then the
// durable backing. A hit in a lower tier promotes the entry to L1.
func (c *TieredCache) Get(ctx context.Context, state int, symbol string) (int, bool) {
	key := Key{State: state, Symbol: symbol}
	now := time.Now()

	c.mu.Lock()
	c.lookups++
	c.wLookups++

	if e := c.l1.get(key); e != nil {
		if e.expired(now) {
			c.l1.remove(e)
			expirationsTotal.Inc()
		} else {
			c.l1.touch(e, now)
			c.hits++
			c.wHits++
			target := e.Target
			c.mu.Unlock()
			hitsTotal.WithLabelValues("l1").Inc()
			c.maybePrefetch(target)
			return target, true
		}
	}

	if c.l2 != nil {
		if e := c.l2.get(key); e != nil {
			if e.expired(now) {
				c.l2.remove(e)
				expirationsTotal.Inc()
			} else {
				c.l2.remove(e)
				e.Frequency++
				e.LastAccess = now
				c.insertL1Locked(e)
				c.hits++
				c.wHits++
				target := e.Target
				c.mu.Unlock()
				hitsTotal.WithLabelValues("l2").Inc()
				c.maybePrefetch(target)
				return target, true
			}
		}
	}
	c.mu.Unlock()

	if c.backing != nil {
		if target, ok := c.backing.Load(ctx, key); ok {
			c.admit(key, target, 1)
			hitsTotal.WithLabelValues("store").Inc()
			c.mu.Lock()
			c.hits++
			c.wHits++
			c.mu.Unlock()
			return target, true
		}
	}

	missesTotal.Inc()
	return 0, false
}

// Set stores the transition target for (state, symbol). The write always
// lands in L1, evicting first when at capacity; the in-memory value reflects
// the most recent Set regardless of persistence completion order
// (last-writer-wins applies only to the durable copy).
func (c *TieredCache) Set(ctx context.Context, state int, symbol string, target int) {
	key := Key{State: state, Symbol: symbol}
	now := time.Now()

	c.mu.Lock()
	e := c.l1.get(key)
	if e == nil && c.l2 != nil {
		if demoted := c.l2.get(key); demoted != nil {
			c.l2.remove(demoted)
			e = demoted
		}
	}
	if e != nil {
		e.Target = target
		e.LastAccess = now
		if c.cfg.TTL > 0 {
			e.ExpiresAt = now.Add(c.cfg.TTL)
		}
		if c.l1.get(key) != nil {
			c.l1.touch(e, now)
		} else {
			c.insertL1Locked(e)
		}
	} else {
		e = &Entry{
			Key:        key,
			Target:     target,
			Frequency:  1,
			CreatedAt:  now,
			LastAccess: now,
		}
		if c.cfg.TTL > 0 {
			e.ExpiresAt = now.Add(c.cfg.TTL)
		}
		c.insertL1Locked(e)
	}
	c.recordFollowerLocked(key)
	snapshot := *e
	c.mu.Unlock()

	if c.backing != nil {
		c.backing.Store(ctx, snapshot)
	}
}

// admit inserts a value loaded from the backing, unless a concurrent Set beat
// it there.
func (c *TieredCache) admit(key Key, target int, freq uint64) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.l1.get(key); e != nil {
		c.l1.touch(e, now)
		return
	}
	e := &Entry{
		Key:        key,
		Target:     target,
		Frequency:  freq,
		CreatedAt:  now,
		LastAccess: now,
	}
	if c.cfg.TTL > 0 {
		e.ExpiresAt = now.Add(c.cfg.TTL)
	}
	c.insertL1Locked(e)
}

// insertL1Locked makes room in L1 and adds the entry. Evicted entries demote
// to L2 when it exists; L2 overflow is dropped outright.
func (c *TieredCache) insertL1Locked(e *Entry) {
	for c.l1.len() >= c.l1.capacity {
		victim := c.l1.victim()
		if victim == nil {
			break
		}
		c.l1.remove(victim)
		evictionsTotal.WithLabelValues("l1").Inc()
		if c.l2 != nil {
			for c.l2.len() >= c.l2.capacity {
				dropped := c.l2.victim()
				if dropped == nil {
					break
				}
				c.l2.remove(dropped)
				evictionsTotal.WithLabelValues("l2").Inc()
			}
			c.l2.add(victim)
		}
	}
	c.l1.add(e)
}

// Invalidate drops every entry from both in-memory tiers. The durable tier is
// left to its own pruning.
func (c *TieredCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.l1.clear()
	if c.l2 != nil {
		c.l2.clear()
	}
	c.followers = make(map[int][]Key)
}

// Rebuild replaces the cache contents with the given entries, preserving
// their frequency and cost metadata. Used after minimization rewrites the
// state set.
func (c *TieredCache) Rebuild(entries []Entry) {
	c.Invalidate()
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range entries {
		e := entries[i]
		e.elem = nil
		c.insertL1Locked(&e)
		c.recordFollowerLocked(e.Key)
	}
}

// Entries snapshots every live in-memory entry.
func (c *TieredCache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Entry
	for _, e := range c.l1.all() {
		out = append(out, *e)
	}
	if c.l2 != nil {
		for _, e := range c.l2.all() {
			out = append(out, *e)
		}
	}
	return out
}

// Len is the number of live entries across both in-memory tiers.
func (c *TieredCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.l1.len()
	if c.l2 != nil {
		n += c.l2.len()
	}
	return n
}

// Capacity is the current (possibly adapted) L1 capacity.
func (c *TieredCache) Capacity() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.l1.capacity
}

// Stats reports cumulative lookup counters.
type Stats struct {
	Lookups  uint64
	Hits     uint64
	L1Len    int
	L2Len    int
	Capacity int
}

func (s Stats) HitRatio() float64 {
	if s.Lookups == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Lookups)
}

func (c *TieredCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Lookups:  c.lookups,
		Hits:     c.hits,
		L1Len:    c.l1.len(),
		Capacity: c.l1.capacity,
	}
	if c.l2 != nil {
		s.L2Len = c.l2.len()
	}
	return s
}

// sweepExpired removes expired entries from both tiers, independent of
// capacity pressure.
func (c *TieredCache) sweepExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := len(c.l1.sweep(now))
	if c.l2 != nil {
		removed += len(c.l2.sweep(now))
	}
	if removed > 0 {
		expirationsTotal.Add(float64(removed))
		c.log.Debug("ttl sweep", slog.Int("removed", removed))
	}
}

// Close stops the background runners. The cache stays usable for synchronous
// operations afterwards but no longer sweeps or resizes.
func (c *TieredCache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	if c.sweeper != nil {
		c.sweeper.stop()
	}
	if c.resizer != nil {
		c.resizer.stop()
	}
}
