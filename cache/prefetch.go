package cache

import "context"

// maxFollowersPerState bounds the follower index so a hub state cannot grow
// an unbounded prefetch list.
const maxFollowersPerState = 16

// recordFollowerLocked indexes the cached transition under its source state
// so that a later hit landing on that state can warm it.
func (c *TieredCache) recordFollowerLocked(key Key) {
	keys := c.followers[key.State]
	for _, k := range keys {
		if k == key {
			return
		}
	}
	if len(keys) >= maxFollowersPerState {
		return
	}
	c.followers[key.State] = append(keys, key)
}

// maybePrefetch kicks off an asynchronous warm of the transitions known to
// leave the state a hit just landed on. Best-effort: it never blocks the
// lookup that triggered it and may be abandoned without affecting
// correctness.
func (c *TieredCache) maybePrefetch(target int) {
	if !c.cfg.Prefetch {
		return
	}
	go c.warmFollowers(target)
}

func (c *TieredCache) warmFollowers(state int) {
	c.mu.Lock()
	var cold []Key
	for _, key := range c.followers[state] {
		if c.l1.get(key) == nil {
			cold = append(cold, key)
		}
	}
	c.mu.Unlock()

	for _, key := range cold {
		c.mu.Lock()
		if c.l2 != nil {
			if e := c.l2.get(key); e != nil {
				c.l2.remove(e)
				c.insertL1Locked(e)
				c.mu.Unlock()
				continue
			}
		}
		c.mu.Unlock()

		if c.backing != nil {
			if target, ok := c.backing.Load(context.Background(), key); ok {
				c.admit(key, target, 1)
			}
		}
	}
}
