// Package config describes a cache stack declaratively.
//
// A stack is loaded from YAML and then overlaid with environment variables,
// read from the process and from optional .env files:
//
//   - LAYERCACHE_REDIS_ADDR: address of every redis tier
//   - LAYERCACHE_REDIS_PASSWORD: password of every redis tier
//   - LAYERCACHE_MEMCACHE_SERVERS: comma-separated servers of every memcache tier
//   - LAYERCACHE_BACKFILL: sequential, concurrent or detached
//   - LAYERCACHE_COMPRESSION: none or snappy
//
// Example:
//
//	backfill: concurrent
//	compression: snappy
//	tiers:
//	  - kind: ristretto
//	    max_cost: 100000
//	  - kind: redis
//	    redis:
//	      addr: localhost:6379
//	    guard:
//	      failure_threshold: 5
//	      open_timeout: 10s
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Kind names a tier backend.
type Kind string

const (
	KindMemory    Kind = "memory"
	KindRistretto Kind = "ristretto"
	KindFreecache Kind = "freecache"
	KindRedis     Kind = "redis"
	KindMemcache  Kind = "memcache"
)

// Compression values.
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
)

// Defaults filled in by Adjust.
const (
	DefaultRistrettoMaxCost = 10_000
	DefaultFreecacheSize    = 32 << 20
	DefaultRedisPrefix      = "layercache:"
	DefaultMemcacheTimeout  = 500 * time.Millisecond
)

var (
	// ErrNoTiers is returned by Validate for a stack without tiers.
	ErrNoTiers = errors.New("config: no tiers configured")

	// ErrUnknownKind is returned by Validate for an unsupported tier kind.
	ErrUnknownKind = errors.New("config: unknown tier kind")

	// ErrInvalid is wrapped by Validate for any other rejected value.
	ErrInvalid = errors.New("config: invalid value")
)

// Config is a whole cache stack. Tiers are listed fastest first.
type Config struct {
	// Backfill is the repopulation mode; see cache.ParseBackfillMode.
	Backfill string `yaml:"backfill"`

	// Compression applies to byte-oriented tiers (freecache, redis,
	// memcache).
	Compression string `yaml:"compression"`

	// Tracing wraps every tier in OpenTelemetry spans.
	Tracing bool `yaml:"tracing"`

	// LogEvents logs every cache event at debug level.
	LogEvents bool `yaml:"log_events"`

	Tiers []TierCfg `yaml:"tiers"`
}

// TierCfg configures one tier. Only the block matching Kind is read.
type TierCfg struct {
	Name string `yaml:"name"`
	Kind Kind   `yaml:"kind"`

	// MaxCost bounds a ristretto tier; every entry costs 1.
	MaxCost int64 `yaml:"max_cost"`

	// SizeBytes is the freecache arena size.
	SizeBytes int `yaml:"size_bytes"`

	Redis    *RedisCfg    `yaml:"redis"`
	Memcache *MemcacheCfg `yaml:"memcache"`
	Guard    *GuardCfg    `yaml:"guard"`
}

type RedisCfg struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type MemcacheCfg struct {
	Servers []string      `yaml:"servers"`
	Prefix  string        `yaml:"prefix"`
	Timeout time.Duration `yaml:"timeout"`
}

// GuardCfg puts a circuit breaker and an optional rate limit in front of a
// tier. Zero breaker fields take the breaker defaults; RPS <= 0 disables
// the limiter. A zero Burst with a positive RPS defaults to ceil(RPS).
type GuardCfg struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	OpenTimeout        time.Duration `yaml:"open_timeout"`
	HalfOpenMaxSuccess int           `yaml:"half_open_max_success"`
	RPS                float64       `yaml:"rps"`
	Burst              int           `yaml:"burst"`
}

// LoadFile reads the YAML stack description at path and fills defaults. It
// does not validate.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	cfg.Adjust()

	return &cfg, nil
}

// Load reads path, overlays the environment (process variables first, then
// envFiles, ".env" when none are given) and validates the result.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	lookup, err := EnvLookup(envFiles...)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	cfg.Adjust()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Adjust fills unset fields with defaults. It is idempotent.
func (c *Config) Adjust() {
	if c.Backfill == "" {
		c.Backfill = "sequential"
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}

	seen := make(map[string]int, len(c.Tiers))
	for i := range c.Tiers {
		t := &c.Tiers[i]
		if t.Name == "" {
			t.Name = string(t.Kind)
			if n := seen[t.Name]; n > 0 {
				t.Name = fmt.Sprintf("%s%d", t.Kind, n)
			}
		}
		seen[string(t.Kind)]++

		switch t.Kind {
		case KindRistretto:
			if t.MaxCost <= 0 {
				t.MaxCost = DefaultRistrettoMaxCost
			}
		case KindFreecache:
			if t.SizeBytes <= 0 {
				t.SizeBytes = DefaultFreecacheSize
			}
		case KindRedis:
			if t.Redis == nil {
				t.Redis = &RedisCfg{}
			}
			if t.Redis.Prefix == "" {
				t.Redis.Prefix = DefaultRedisPrefix
			}
		case KindMemcache:
			if t.Memcache == nil {
				t.Memcache = &MemcacheCfg{}
			}
			if t.Memcache.Timeout <= 0 {
				t.Memcache.Timeout = DefaultMemcacheTimeout
			}
		}

		if g := t.Guard; g != nil && g.RPS > 0 && g.Burst == 0 {
			g.Burst = max(1, int(math.Ceil(g.RPS)))
		}
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	if len(c.Tiers) == 0 {
		return ErrNoTiers
	}

	var errs []error
	if !validBackfill(c.Backfill) {
		errs = append(errs, fmt.Errorf("%w: backfill %q", ErrInvalid, c.Backfill))
	}
	switch c.Compression {
	case "", CompressionNone, CompressionSnappy:
	default:
		errs = append(errs, fmt.Errorf("%w: compression %q", ErrInvalid, c.Compression))
	}

	names := make(map[string]bool, len(c.Tiers))
	for i, t := range c.Tiers {
		if t.Name != "" && names[t.Name] {
			errs = append(errs, fmt.Errorf("tier %d: %w: duplicate name %q", i, ErrInvalid, t.Name))
		}
		names[t.Name] = true

		switch t.Kind {
		case KindMemory, KindRistretto, KindFreecache:
		case KindRedis:
			if t.Redis == nil || t.Redis.Addr == "" {
				errs = append(errs, fmt.Errorf("tier %d (%s): %w: redis.addr is required", i, t.Name, ErrInvalid))
			}
		case KindMemcache:
			if t.Memcache == nil || len(t.Memcache.Servers) == 0 {
				errs = append(errs, fmt.Errorf("tier %d (%s): %w: memcache.servers is required", i, t.Name, ErrInvalid))
			}
		default:
			errs = append(errs, fmt.Errorf("tier %d: %w %q", i, ErrUnknownKind, t.Kind))
		}

		if g := t.Guard; g != nil && g.RPS > 0 && g.Burst < 1 {
			errs = append(errs, fmt.Errorf("tier %d (%s): %w: guard.burst must be at least 1 when rps is set", i, t.Name, ErrInvalid))
		}
	}
	return errors.Join(errs...)
}

func validBackfill(s string) bool {
	switch s {
	case "", "sequential", "concurrent", "detached":
		return true
	}
	return false
}
