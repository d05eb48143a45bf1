package cache

import (
	"container/list"
	"strconv"
	"time"
)

// Key identifies one cached transition: the source state id plus the input
// symbol consumed.
type Key struct {
	State  int
	Symbol string
}

// String is the logical key persisted stores hash into record keys.
func (k Key) String() string {
	return strconv.Itoa(k.State) + ":" + k.Symbol
}

// Entry is one cached transition plus the bookkeeping eviction and TTL need.
type Entry struct {
	Key    Key
	Target int

	// Frequency counts hits since insertion; it drives bucket placement and
	// LFU victim selection.
	Frequency uint64

	CreatedAt  time.Time
	LastAccess time.Time

	// ExpiresAt is the TTL deadline; zero means the entry never expires.
	ExpiresAt time.Time

	// Cost estimates how expensive the transition was to compute; weighting
	// signal supplied by the caller (equivalence-class boundary crossings
	// cost more to recompute).
	Cost float64

	elem   *list.Element
	bucket int
}

func (e *Entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}
