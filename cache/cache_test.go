package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBacking struct {
	mu     sync.Mutex
	m      map[Key]int
	stores int
}

func newFakeBacking() *fakeBacking {
	return &fakeBacking{m: make(map[Key]int)}
}

func (f *fakeBacking) Load(_ context.Context, key Key) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.m[key]
	return target, ok
}

func (f *fakeBacking) Store(_ context.Context, e Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[e.Key] = e.Target
	f.stores++
}

func (f *fakeBacking) storeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stores
}

func Test_TieredCache(t *testing.T) {
	ctx := context.Background()

	t.Run("testSetThenGet", func(t *testing.T) {
		c, err := New(Config{MaxSize: 8})
		require.NoError(t, err)
		defer c.Close()

		c.Set(ctx, 1, "click", 2)
		target, ok := c.Get(ctx, 1, "click")
		assert.True(t, ok)
		assert.Equal(t, 2, target)

		_, ok = c.Get(ctx, 1, "hover")
		assert.False(t, ok)
	})

	t.Run("testSetOverwrites", func(t *testing.T) {
		c, err := New(Config{MaxSize: 8})
		require.NoError(t, err)
		defer c.Close()

		c.Set(ctx, 1, "a", 2)
		c.Set(ctx, 1, "a", 3)
		target, ok := c.Get(ctx, 1, "a")
		assert.True(t, ok)
		assert.Equal(t, 3, target)
		assert.Equal(t, 1, c.Len())
	})

	t.Run("testLRUEviction", func(t *testing.T) {
		c, err := New(Config{MaxSize: 2, Strategy: LRU})
		require.NoError(t, err)
		defer c.Close()

		c.Set(ctx, 1, "a", 10)
		c.Set(ctx, 2, "b", 20)
		_, ok := c.Get(ctx, 1, "a") // refresh k1
		require.True(t, ok)
		c.Set(ctx, 3, "c", 30) // evicts k2

		_, ok = c.Get(ctx, 2, "b")
		assert.False(t, ok)
		_, ok = c.Get(ctx, 1, "a")
		assert.True(t, ok)
		_, ok = c.Get(ctx, 3, "c")
		assert.True(t, ok)
	})

	t.Run("testLFUEviction", func(t *testing.T) {
		c, err := New(Config{MaxSize: 2, Strategy: LFU})
		require.NoError(t, err)
		defer c.Close()

		c.Set(ctx, 1, "a", 10)
		c.Set(ctx, 2, "b", 20)
		for i := 0; i < 2; i++ {
			_, ok := c.Get(ctx, 1, "a")
			require.True(t, ok)
		}
		// k2 has the minimum frequency and is evicted even though it is more
		// recent than nothing; k1 stays despite being older.
		c.Set(ctx, 3, "c", 30)

		_, ok := c.Get(ctx, 2, "b")
		assert.False(t, ok)
		_, ok = c.Get(ctx, 1, "a")
		assert.True(t, ok)
	})

	t.Run("testHybridAlternates", func(t *testing.T) {
		c, err := New(Config{MaxSize: 2, Strategy: Hybrid})
		require.NoError(t, err)
		defer c.Close()

		for i := 0; i < 10; i++ {
			c.Set(ctx, i, "x", i)
		}
		assert.Equal(t, 2, c.Len())
	})

	t.Run("testHybridAlternatesPerTier", func(t *testing.T) {
		// L2 overflow drops consume the warm tier's own alternation state,
		// so L1 sees a strict LFU, LRU, LFU, ... sequence regardless of how
		// often demotions spill.
		c, err := New(Config{MaxSize: 2, L2Size: 1, Strategy: Hybrid})
		require.NoError(t, err)
		defer c.Close()

		c.Set(ctx, 1, "s", 10)
		c.Set(ctx, 2, "s", 20)
		_, ok := c.Get(ctx, 2, "s")
		require.True(t, ok)

		// Eviction 1 (LFU): k1 demotes to L2.
		c.Set(ctx, 3, "s", 30)
		// Eviction 2 (LRU): k2 demotes, dropping k1 out of the full L2.
		c.Set(ctx, 4, "s", 40)

		// Make k4 the frequency victim but the recency survivor.
		for i := 0; i < 2; i++ {
			_, ok = c.Get(ctx, 3, "s")
			require.True(t, ok)
		}
		_, ok = c.Get(ctx, 4, "s")
		require.True(t, ok)

		// Eviction 3 must be LFU again: k4 goes, k3 stays.
		c.Set(ctx, 5, "s", 50)

		c.mu.Lock()
		defer c.mu.Unlock()
		assert.NotNil(t, c.l1.get(Key{State: 3, Symbol: "s"}))
		assert.NotNil(t, c.l1.get(Key{State: 5, Symbol: "s"}))
		assert.Nil(t, c.l1.get(Key{State: 4, Symbol: "s"}))
		assert.NotNil(t, c.l2.get(Key{State: 4, Symbol: "s"}))
	})

	t.Run("testTTLExpiry", func(t *testing.T) {
		c, err := New(Config{MaxSize: 8, TTL: 15 * time.Millisecond})
		require.NoError(t, err)
		defer c.Close()

		c.Set(ctx, 1, "a", 2)
		_, ok := c.Get(ctx, 1, "a")
		assert.True(t, ok)

		time.Sleep(30 * time.Millisecond)
		_, ok = c.Get(ctx, 1, "a")
		assert.False(t, ok)
	})

	t.Run("testSweepRemovesExpired", func(t *testing.T) {
		c, err := New(Config{MaxSize: 8, TTL: 10 * time.Millisecond})
		require.NoError(t, err)
		defer c.Close()

		c.Set(ctx, 1, "a", 2)
		c.Set(ctx, 2, "b", 3)
		time.Sleep(20 * time.Millisecond)
		c.sweepExpired()
		assert.Equal(t, 0, c.Len())
	})

	t.Run("testL2PromotionAndDemotion", func(t *testing.T) {
		c, err := New(Config{MaxSize: 1, L2Size: 2})
		require.NoError(t, err)
		defer c.Close()

		c.Set(ctx, 1, "a", 10)
		c.Set(ctx, 2, "b", 20) // k1 demoted to L2

		stats := c.Stats()
		assert.Equal(t, 1, stats.L1Len)
		assert.Equal(t, 1, stats.L2Len)

		// L2 hit promotes back to L1, demoting k2.
		target, ok := c.Get(ctx, 1, "a")
		assert.True(t, ok)
		assert.Equal(t, 10, target)
		assert.Equal(t, 2, c.Len())

		target, ok = c.Get(ctx, 2, "b")
		assert.True(t, ok)
		assert.Equal(t, 20, target)
	})

	t.Run("testBackingReadThrough", func(t *testing.T) {
		backing := newFakeBacking()
		backing.m[Key{State: 7, Symbol: "z"}] = 9

		c, err := New(Config{MaxSize: 4, Backing: backing})
		require.NoError(t, err)
		defer c.Close()

		target, ok := c.Get(ctx, 7, "z")
		assert.True(t, ok)
		assert.Equal(t, 9, target)
		// Promoted: present in L1 now.
		assert.Equal(t, 1, c.Stats().L1Len)
	})

	t.Run("testBackingWriteThrough", func(t *testing.T) {
		backing := newFakeBacking()
		c, err := New(Config{MaxSize: 4, Backing: backing})
		require.NoError(t, err)
		defer c.Close()

		c.Set(ctx, 1, "a", 2)
		assert.Equal(t, 1, backing.storeCount())
		target, ok := backing.Load(ctx, Key{State: 1, Symbol: "a"})
		assert.True(t, ok)
		assert.Equal(t, 2, target)
	})

	t.Run("testInvalidateAndRebuild", func(t *testing.T) {
		c, err := New(Config{MaxSize: 4})
		require.NoError(t, err)
		defer c.Close()

		c.Set(ctx, 1, "a", 2)
		c.Set(ctx, 2, "b", 3)
		entries := c.Entries()
		assert.Len(t, entries, 2)

		c.Invalidate()
		assert.Equal(t, 0, c.Len())

		c.Rebuild(entries)
		assert.Equal(t, 2, c.Len())
		target, ok := c.Get(ctx, 1, "a")
		assert.True(t, ok)
		assert.Equal(t, 2, target)
	})

	t.Run("testPrefetchWarmsFollowers", func(t *testing.T) {
		backing := newFakeBacking()
		c, err := New(Config{MaxSize: 4, Backing: backing, Prefetch: true})
		require.NoError(t, err)
		defer c.Close()

		// Transition 1 --a--> 2, and a known follower 2 --b--> 3 that only
		// the durable tier holds.
		c.Set(ctx, 1, "a", 2)
		c.Set(ctx, 2, "b", 3)
		c.Invalidate()
		c.Set(ctx, 1, "a", 2)
		c.mu.Lock()
		c.recordFollowerLocked(Key{State: 2, Symbol: "b"})
		c.mu.Unlock()

		_, ok := c.Get(ctx, 1, "a")
		require.True(t, ok)

		// The warm happens asynchronously.
		assert.Eventually(t, func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.l1.get(Key{State: 2, Symbol: "b"}) != nil
		}, time.Second, 5*time.Millisecond)
	})
}

func Test_AdaptiveSizing(t *testing.T) {
	ctx := context.Background()

	adaptive := Config{
		MaxSize:      4,
		Strategy:     LRU,
		AdaptiveSize: true,
		HighWater:    0.8,
		LowWater:     0.2,
		MinSize:      2,
		MaxCapacity:  16,
	}

	t.Run("testGrowsOnHighHitRatio", func(t *testing.T) {
		c, err := New(adaptive)
		require.NoError(t, err)
		defer c.Close()

		c.Set(ctx, 1, "a", 2)
		for i := 0; i < 2*minResizeSamples; i++ {
			_, ok := c.Get(ctx, 1, "a")
			require.True(t, ok)
		}
		c.resizeCheck()
		assert.Equal(t, 8, c.Capacity())
	})

	t.Run("testShrinksOnLowHitRatio", func(t *testing.T) {
		c, err := New(adaptive)
		require.NoError(t, err)
		defer c.Close()

		for i := 0; i < 2*minResizeSamples; i++ {
			_, ok := c.Get(ctx, i, "missing")
			require.False(t, ok)
		}
		c.resizeCheck()
		assert.Equal(t, 2, c.Capacity())
	})

	t.Run("testGrowthBounded", func(t *testing.T) {
		c, err := New(adaptive)
		require.NoError(t, err)
		defer c.Close()

		c.Set(ctx, 1, "a", 2)
		for round := 0; round < 6; round++ {
			for i := 0; i < minResizeSamples; i++ {
				c.Get(ctx, 1, "a")
			}
			c.resizeCheck()
		}
		assert.Equal(t, 16, c.Capacity())
	})

	t.Run("testTooFewSamplesIgnored", func(t *testing.T) {
		c, err := New(adaptive)
		require.NoError(t, err)
		defer c.Close()

		c.Set(ctx, 1, "a", 2)
		c.Get(ctx, 1, "a")
		c.resizeCheck()
		assert.Equal(t, 4, c.Capacity())
	})
}

func Test_ConfigValidation(t *testing.T) {
	t.Run("testMaxSizeRequired", func(t *testing.T) {
		_, err := New(Config{})
		assert.NotNil(t, err)
	})

	t.Run("testBadStrategy", func(t *testing.T) {
		_, err := New(Config{MaxSize: 4, Strategy: "clock"})
		assert.NotNil(t, err)
	})

	t.Run("testAdaptiveRequiresWaterMarks", func(t *testing.T) {
		_, err := New(Config{MaxSize: 4, AdaptiveSize: true})
		assert.NotNil(t, err)

		_, err = New(Config{MaxSize: 4, AdaptiveSize: true, HighWater: 0.5, LowWater: 0.7, MinSize: 2, MaxCapacity: 8})
		assert.NotNil(t, err)
	})
}
