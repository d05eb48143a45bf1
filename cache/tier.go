package cache

import (
	"container/list"
	"time"
)

// Frequency buckets subdivide a tier so eviction drains cold entries first,
// independent of the global strategy.
const (
	bucketRare = iota
	bucketModerate
	bucketFrequent
	numBuckets
)

const (
	moderateThreshold = 4
	frequentThreshold = 32
)

func bucketFor(freq uint64) int {
	switch {
	case freq >= frequentThreshold:
		return bucketFrequent
	case freq >= moderateThreshold:
		return bucketModerate
	default:
		return bucketRare
	}
}

// tier is one in-memory cache level: a hashmap plus per-bucket recency lists
// (front = most recently used). Each tier owns its policy instance so
// stateful strategies (hybrid alternation) track eviction events per tier.
type tier struct {
	name     string
	capacity int
	policy   policy
	entries  map[Key]*Entry
	buckets  [numBuckets]*list.List
}

func newTier(name string, capacity int, p policy) *tier {
	t := &tier{
		name:     name,
		capacity: capacity,
		policy:   p,
		entries:  make(map[Key]*Entry),
	}
	for i := range t.buckets {
		t.buckets[i] = list.New()
	}
	return t
}

func (t *tier) len() int {
	return len(t.entries)
}

func (t *tier) get(key Key) *Entry {
	return t.entries[key]
}

// add inserts the entry at the front of its frequency bucket. The caller is
// responsible for capacity.
func (t *tier) add(e *Entry) {
	e.bucket = bucketFor(e.Frequency)
	e.elem = t.buckets[e.bucket].PushFront(e)
	t.entries[e.Key] = e
	entriesGauge.WithLabelValues(t.name).Set(float64(len(t.entries)))
}

// touch records a hit: bumps frequency, refreshes recency, and migrates the
// entry to a hotter bucket when it crosses a threshold.
func (t *tier) touch(e *Entry, now time.Time) {
	e.Frequency++
	e.LastAccess = now
	if b := bucketFor(e.Frequency); b != e.bucket {
		t.buckets[e.bucket].Remove(e.elem)
		e.bucket = b
		e.elem = t.buckets[b].PushFront(e)
		return
	}
	t.buckets[e.bucket].MoveToFront(e.elem)
}

func (t *tier) remove(e *Entry) {
	t.buckets[e.bucket].Remove(e.elem)
	e.elem = nil
	delete(t.entries, e.Key)
	entriesGauge.WithLabelValues(t.name).Set(float64(len(t.entries)))
}

// victim picks the entry to evict: the coldest nonempty bucket is drained
// first, the tier's policy breaks ties within it.
func (t *tier) victim() *Entry {
	for b := bucketRare; b < numBuckets; b++ {
		if t.buckets[b].Len() == 0 {
			continue
		}
		if el := t.policy.victim(t.buckets[b]); el != nil {
			return el.Value.(*Entry)
		}
	}
	return nil
}

// sweep removes and returns every expired entry.
func (t *tier) sweep(now time.Time) []*Entry {
	var expired []*Entry
	for _, e := range t.entries {
		if e.expired(now) {
			expired = append(expired, e)
		}
	}
	for _, e := range expired {
		t.remove(e)
	}
	return expired
}

func (t *tier) clear() {
	t.entries = make(map[Key]*Entry)
	for i := range t.buckets {
		t.buckets[i] = list.New()
	}
	entriesGauge.WithLabelValues(t.name).Set(0)
}

func (t *tier) all() []*Entry {
	out := make([]*Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	return out
}
