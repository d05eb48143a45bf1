package cache

import (
	"container/list"
	"fmt"
)

// Strategy selects the global eviction policy.
type Strategy string

const (
	// LRU evicts the least recently used entry. O(1) get/set/evict.
	LRU Strategy = "lru"

	// LFU evicts the minimum-frequency entry, least recent on ties.
	LFU Strategy = "lfu"

	// Hybrid alternates between LRU and LFU per eviction event.
	Hybrid Strategy = "hybrid"
)

// ParseStrategy maps a configuration string onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case LRU, LFU, Hybrid:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown eviction strategy %q", s)
}

// policy picks a victim within one frequency bucket's recency list. Bucket
// selection (coldest first) already happened; the policy only breaks the tie
// within the bucket.
type policy interface {
	victim(l *list.List) *list.Element
}

func newPolicy(s Strategy) policy {
	switch s {
	case LFU:
		return lfuPolicy{}
	case Hybrid:
		return &hybridPolicy{}
	default:
		return lruPolicy{}
	}
}

// lruPolicy takes the back of the recency list.
type lruPolicy struct{}

func (lruPolicy) victim(l *list.List) *list.Element {
	return l.Back()
}

// lfuPolicy scans for the minimum frequency, preferring the least recently
// used among equals. Buckets keep frequency ranges narrow so the scan stays
// short.
type lfuPolicy struct{}

func (lfuPolicy) victim(l *list.List) *list.Element {
	var min *list.Element
	for el := l.Back(); el != nil; el = el.Prev() {
		if min == nil || el.Value.(*Entry).Frequency < min.Value.(*Entry).Frequency {
			min = el
		}
	}
	return min
}

// hybridPolicy alternates LRU and LFU on successive evictions.
type hybridPolicy struct {
	useLFU bool
}

func (h *hybridPolicy) victim(l *list.List) *list.Element {
	h.useLFU = !h.useLFU
	if h.useLFU {
		return lfuPolicy{}.victim(l)
	}
	return lruPolicy{}.victim(l)
}
