package cache

// minResizeSamples is how many lookups the rolling window needs before a
// resize decision is meaningful.
const minResizeSamples = 16

const growFactor = 2

// resizeCheck inspects the rolling hit ratio accumulated since the previous
// check. A ratio at or above the high-water mark grows L1 (bounded by
// MaxCapacity); at or below the low-water mark shrinks it (bounded by
// MinSize), evicting overflow immediately.
func (c *TieredCache) resizeCheck() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.wLookups < minResizeSamples {
		return
	}
	ratio := float64(c.wHits) / float64(c.wLookups)
	c.wLookups, c.wHits = 0, 0

	switch {
	case ratio >= c.cfg.HighWater && c.l1.capacity < c.cfg.MaxCapacity:
		grown := c.l1.capacity * growFactor
		if grown > c.cfg.MaxCapacity {
			grown = c.cfg.MaxCapacity
		}
		c.l1.capacity = grown
	case ratio <= c.cfg.LowWater && c.l1.capacity > c.cfg.MinSize:
		shrunk := c.l1.capacity / growFactor
		if shrunk < c.cfg.MinSize {
			shrunk = c.cfg.MinSize
		}
		c.l1.capacity = shrunk
		for c.l1.len() > c.l1.capacity {
			victim := c.l1.victim()
			if victim == nil {
				break
			}
			c.l1.remove(victim)
			evictionsTotal.WithLabelValues("l1").Inc()
		}
	default:
		return
	}
	capacityGauge.Set(float64(c.l1.capacity))
}
