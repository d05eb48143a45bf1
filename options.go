package statecache

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/foldline/statecache/cache"
	"github.com/foldline/statecache/store"
)

// Options is the full configuration surface. Durations are milliseconds on
// the wire.
type Options struct {
	// Cache tiers.
	MaxSize           int    `yaml:"maxSize"`
	L2Size            int    `yaml:"l2Size"`
	TTL               int64  `yaml:"ttl"`
	Strategy          string `yaml:"strategy"`
	AdaptiveSize      bool   `yaml:"adaptiveSize"`
	HitRatioHighWater float64 `yaml:"hitRatioHighWater"`
	HitRatioLowWater  float64 `yaml:"hitRatioLowWater"`
	MinSize           int    `yaml:"minSize"`
	MaxCapacity       int    `yaml:"maxCapacity"`
	SweepInterval     int64  `yaml:"sweepInterval"`
	ResizeInterval    int64  `yaml:"resizeInterval"`
	Prefetch          bool   `yaml:"prefetch"`

	// Durable tier.
	PersistToStorage    bool    `yaml:"persistToStorage"`
	StoreBackend        string  `yaml:"storeBackend"`
	CacheDir            string  `yaml:"cacheDir"`
	RedisAddr           string  `yaml:"redisAddr"`
	RedisPassword       string  `yaml:"redisPassword"`
	RedisDB             int     `yaml:"redisDB"`
	Digest              string  `yaml:"digest"`
	MaxRecords          int     `yaml:"maxRecords"`
	CompactionThreshold float64 `yaml:"compactionThreshold"`
	CompactionTarget    float64 `yaml:"compactionTarget"`
	PruneInterval       int64   `yaml:"pruneInterval"`
	CompactInterval     int64   `yaml:"compactInterval"`

	// Minimization bounds.
	MaxIterations         int `yaml:"maxIterations"`
	MaxEquivalenceClasses int `yaml:"maxEquivalenceClasses"`

	// WarmupSeed makes Warmup's sampling deterministic; 0 seeds from the
	// clock.
	WarmupSeed int64 `yaml:"warmupSeed"`
}

const (
	backendBadger = "badger"
	backendRedis  = "redis"
)

// DefaultOptions returns a working in-memory configuration. Adaptive water
// marks deliberately have no defaults; enabling adaptiveSize without setting
// them is a validation error.
func DefaultOptions() Options {
	return Options{
		MaxSize:               1024,
		L2Size:                4096,
		Strategy:              string(cache.LRU),
		SweepInterval:         30_000,
		ResizeInterval:        10_000,
		StoreBackend:          backendBadger,
		Digest:                "sha256",
		MaxRecords:            100_000,
		CompactionThreshold:   0.9,
		CompactionTarget:      0.7,
		PruneInterval:         60_000,
		CompactInterval:       60_000,
		MaxIterations:         64,
		MaxEquivalenceClasses: 100_000,
	}
}

// LoadOptions reads a YAML options file over the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read options: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse options: %w", err)
	}
	return opts, nil
}

// Validate checks the store and minimization settings. Cache-tier settings
// are validated again by cache.New.
func (o Options) Validate() error {
	if o.MaxSize <= 0 {
		return errors.New("statecache: maxSize must be positive")
	}
	if _, err := cache.ParseStrategy(o.Strategy); err != nil {
		return err
	}
	if o.AdaptiveSize && (o.HitRatioHighWater == 0 || o.HitRatioLowWater == 0) {
		return errors.New("statecache: adaptiveSize requires explicit hitRatioHighWater and hitRatioLowWater")
	}
	if o.PersistToStorage {
		switch o.StoreBackend {
		case backendBadger:
			if o.CacheDir == "" {
				return errors.New("statecache: cacheDir is required for the badger backend")
			}
		case backendRedis:
			if o.RedisAddr == "" {
				return errors.New("statecache: redisAddr is required for the redis backend")
			}
		default:
			return fmt.Errorf("statecache: unknown store backend %q", o.StoreBackend)
		}
		if _, err := store.HashKey(o.Digest, "probe"); err != nil {
			return err
		}
	}
	if o.MaxIterations <= 0 {
		return errors.New("statecache: maxIterations must be positive")
	}
	if o.MaxEquivalenceClasses <= 0 {
		return errors.New("statecache: maxEquivalenceClasses must be positive")
	}
	return nil
}

func (o Options) ttl() time.Duration {
	return time.Duration(o.TTL) * time.Millisecond
}

func millis(v int64) time.Duration {
	return time.Duration(v) * time.Millisecond
}
