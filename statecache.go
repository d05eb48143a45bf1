// Package statecache caches and minimizes document-tree state machines. A
// Machine wraps one automaton with a tiered transition cache: lookups hit the
// in-memory tiers first, fall through to an optional durable store, and only
// then walk the automaton itself. Minimization collapses behaviorally
// equivalent states and rewrites the cache in place.
package statecache

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/foldline/statecache/automaton"
	"github.com/foldline/statecache/cache"
	"github.com/foldline/statecache/store"
)

// boundaryWeight is the sampling multiplier for transitions that cross a kind
// or acceptance boundary. Boundary transitions are where tree diffing resumes
// comparison, so they are disproportionately hot.
const boundaryWeight = 2.0

// MinimizeStats summarizes one minimization run.
type MinimizeStats struct {
	StatesBefore int
	StatesAfter  int
	Merged       int
	Classes      int
	Iterations   int

	// Stable is false when refinement hit its iteration cap before reaching
	// a fixpoint. The resulting partition is coarser than optimal but still
	// sound, so merging proceeds anyway.
	Stable bool

	// Aborted is true when refinement exceeded the equivalence-class cap.
	// The automaton is left unminimized in that case.
	Aborted bool
}

// Machine binds an automaton to its transition cache and durable store.
type Machine struct {
	mu   sync.RWMutex
	auto *automaton.Automaton

	cache   *cache.TieredCache
	backing *storeBacking
	st      store.Store
	maint   *store.Maintainer

	opts Options
	log  *slog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New builds a Machine around the automaton. The automaton's current state is
// finished if the caller left it open; states added after New are not visible
// to the Machine.
func New(a *automaton.Automaton, opts Options, logger *slog.Logger) (*Machine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	a.FinishState()

	m := &Machine{
		auto: a,
		opts: opts,
		log:  logger,
	}

	seed := opts.WarmupSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	m.rng = rand.New(rand.NewSource(seed))

	if opts.PersistToStorage {
		st, err := openStore(opts, logger)
		if err != nil {
			return nil, err
		}
		m.st = st
		m.backing = newStoreBacking(st, opts.Digest, logger)
		m.maint = store.NewMaintainer(st, millis(opts.PruneInterval), millis(opts.CompactInterval), logger)
		m.maint.Start()
	}

	cfg := cache.Config{
		MaxSize:        opts.MaxSize,
		L2Size:         opts.L2Size,
		TTL:            opts.ttl(),
		Strategy:       cache.Strategy(opts.Strategy),
		AdaptiveSize:   opts.AdaptiveSize,
		HighWater:      opts.HitRatioHighWater,
		LowWater:       opts.HitRatioLowWater,
		MinSize:        opts.MinSize,
		MaxCapacity:    opts.MaxCapacity,
		SweepInterval:  millis(opts.SweepInterval),
		ResizeInterval: millis(opts.ResizeInterval),
		Prefetch:       opts.Prefetch,
		Logger:         logger,
	}
	if m.backing != nil {
		cfg.Backing = m.backing
	}
	c, err := cache.New(cfg)
	if err != nil {
		m.closeStore()
		return nil, err
	}
	m.cache = c
	return m, nil
}

// NewFromJSON decodes a serialized automaton and builds a Machine around it.
func NewFromJSON(data []byte, opts Options, logger *slog.Logger) (*Machine, error) {
	a, err := automaton.DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	return New(a, opts, logger)
}

func openStore(opts Options, logger *slog.Logger) (store.Store, error) {
	so := store.Options{
		MaxRecords:          opts.MaxRecords,
		CompactionThreshold: opts.CompactionThreshold,
		CompactionTarget:    opts.CompactionTarget,
		Logger:              logger,
	}
	switch opts.StoreBackend {
	case backendBadger:
		return store.OpenBadger(store.BadgerConfig{Dir: opts.CacheDir, Store: so})
	case backendRedis:
		return store.NewRedis(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, so), nil
	default:
		return nil, fmt.Errorf("statecache: unknown store backend %q", opts.StoreBackend)
	}
}

// Transition resolves the target of (state, symbol), consulting the cache
// before the automaton. Resolved transitions are written back through every
// tier.
func (m *Machine) Transition(ctx context.Context, state int, symbol string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.auto.HasState(state) {
		return 0, fmt.Errorf("%w: %d", ErrUnknownState, state)
	}
	if target, ok := m.cache.Get(ctx, state, symbol); ok {
		return target, nil
	}
	target := m.auto.Step(state, symbol)
	if target < 0 {
		return 0, fmt.Errorf("%w: state %d, symbol %q", ErrNoTransition, state, symbol)
	}
	m.cache.Set(ctx, state, symbol, target)
	return target, nil
}

// Minimize collapses behaviorally equivalent states and remaps every live
// cache entry onto the surviving representatives. When refinement exceeds the
// class cap the automaton and cache are left untouched; an iteration-capped
// partial partition is still merged.
func (m *Machine) Minimize(ctx context.Context) (MinimizeStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := MinimizeStats{StatesBefore: m.auto.NumStates(), StatesAfter: m.auto.NumStates()}
	if m.auto.NumStates() == 0 {
		stats.Stable = true
		return stats, nil
	}
	if !m.auto.IsDeterministic() {
		return stats, ErrNondeterministic
	}

	p := automaton.Refine(m.auto, automaton.Limits{
		MaxIterations: m.opts.MaxIterations,
		MaxClasses:    m.opts.MaxEquivalenceClasses,
	})
	stats.Iterations = p.Iterations
	stats.Classes = len(p.Classes)
	stats.Stable = p.Stable
	stats.Aborted = p.Aborted
	if p.Aborted {
		m.log.Warn("minimization aborted, class cap exceeded",
			slog.Int("maxClasses", m.opts.MaxEquivalenceClasses),
			slog.Int("states", m.auto.NumStates()))
		return stats, nil
	}
	if !p.Stable {
		m.log.Warn("refinement stopped at iteration cap, merging partial partition",
			slog.Int("iterations", p.Iterations))
	}

	res, err := automaton.Merge(m.auto, p)
	if err != nil {
		return stats, err
	}

	entries := m.remapEntries(m.cache.Entries(), res.Remap)
	m.auto = res.Automaton
	m.cache.Rebuild(entries)

	stats.StatesAfter = res.Automaton.NumStates()
	stats.Merged = res.Merged
	m.log.Info("minimized automaton",
		slog.Int("before", stats.StatesBefore),
		slog.Int("after", stats.StatesAfter),
		slog.Int("iterations", stats.Iterations))
	return stats, nil
}

// remapEntries rewrites cache entries onto post-merge state ids. Entries
// touching dropped states vanish; entries that collapse onto the same key
// keep the highest observed frequency.
func (m *Machine) remapEntries(entries []cache.Entry, remap []int) []cache.Entry {
	byKey := make(map[cache.Key]cache.Entry)
	for _, e := range entries {
		if e.Key.State >= len(remap) || e.Target >= len(remap) {
			continue
		}
		ns, nt := remap[e.Key.State], remap[e.Target]
		if ns < 0 || nt < 0 {
			continue
		}
		e.Key = cache.Key{State: ns, Symbol: e.Key.Symbol}
		e.Target = nt
		if prev, ok := byKey[e.Key]; ok && prev.Frequency >= e.Frequency {
			continue
		}
		byKey[e.Key] = e
	}
	out := make([]cache.Entry, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.State != out[j].Key.State {
			return out[i].Key.State < out[j].Key.State
		}
		return out[i].Key.Symbol < out[j].Key.Symbol
	})
	return out
}

// Warmup seeds the cache by random-walking the automaton from the root for
// sampleSize steps and caching the most frequently sampled transitions.
// Transitions crossing a kind or acceptance boundary count double. Returns
// the number of entries seeded.
func (m *Machine) Warmup(ctx context.Context, sampleSize int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if sampleSize <= 0 || m.auto.NumStates() == 0 || m.auto.NumTransitionsAt(0) == 0 {
		return 0, nil
	}

	type sample struct {
		key    cache.Key
		target int
		weight float64
	}
	weights := make(map[cache.Key]*sample)

	m.rngMu.Lock()
	cur := 0
	for step := 0; step < sampleSize; step++ {
		n := m.auto.NumTransitionsAt(cur)
		if n == 0 {
			cur = 0
			n = m.auto.NumTransitionsAt(cur)
		}
		symbol, dest := m.auto.TransitionAt(cur, m.rng.Intn(n))
		key := cache.Key{State: cur, Symbol: symbol}
		s := weights[key]
		if s == nil {
			s = &sample{key: key, target: dest}
			weights[key] = s
		}
		w := 1.0
		if m.auto.Kind(cur) != m.auto.Kind(dest) || m.auto.IsAccept(cur) != m.auto.IsAccept(dest) {
			w = boundaryWeight
		}
		s.weight += w
		cur = dest
	}
	m.rngMu.Unlock()

	ordered := make([]*sample, 0, len(weights))
	for _, s := range weights {
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].weight != ordered[j].weight {
			return ordered[i].weight > ordered[j].weight
		}
		if ordered[i].key.State != ordered[j].key.State {
			return ordered[i].key.State < ordered[j].key.State
		}
		return ordered[i].key.Symbol < ordered[j].key.Symbol
	})

	limit := m.cache.Capacity()
	if len(ordered) < limit {
		limit = len(ordered)
	}
	for _, s := range ordered[:limit] {
		m.cache.Set(ctx, s.key.State, s.key.Symbol, s.target)
	}
	m.log.Debug("cache warmed",
		slog.Int("sampled", sampleSize),
		slog.Int("seeded", limit))
	return limit, nil
}

// Automaton returns the current (possibly minimized) automaton.
func (m *Machine) Automaton() *automaton.Automaton {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.auto
}

// Stats reports cumulative cache counters.
func (m *Machine) Stats() cache.Stats {
	return m.cache.Stats()
}

// Flush blocks until every in-flight durable write has landed.
func (m *Machine) Flush() {
	if m.backing != nil {
		m.backing.flush()
	}
}

// Close stops background maintenance and releases the durable store. Pending
// persists are flushed first so a reopened store sees every write.
func (m *Machine) Close() error {
	m.cache.Close()
	if m.backing != nil {
		m.backing.flush()
	}
	return m.closeStore()
}

func (m *Machine) closeStore() error {
	if m.maint != nil {
		m.maint.Stop()
	}
	if m.st != nil {
		return m.st.Close()
	}
	return nil
}
