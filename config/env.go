package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvRedisAddr       = "LAYERCACHE_REDIS_ADDR"
	EnvRedisPassword   = "LAYERCACHE_REDIS_PASSWORD"
	EnvMemcacheServers = "LAYERCACHE_MEMCACHE_SERVERS"
	EnvBackfill        = "LAYERCACHE_BACKFILL"
	EnvCompression     = "LAYERCACHE_COMPRESSION"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// EnvLookup returns a lookup that consults the process environment first
// and then the given .env files, without modifying the process environment.
// Missing files are skipped. With no files it reads ".env".
func EnvLookup(files ...string) (LookupFunc, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	fileVars := make(map[string]string)
	for _, f := range files {
		vars, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read env file %s: %w", f, err)
		}
		for k, v := range vars {
			// The first file to define a key wins, like godotenv.Load.
			if _, ok := fileVars[k]; !ok {
				fileVars[k] = v
			}
		}
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}, nil
}

// ApplyEnv overlays the LAYERCACHE_* variables found by lookup. Redis and
// memcache settings apply to every tier of that kind.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup(EnvBackfill); ok {
		if !validBackfill(v) {
			return fmt.Errorf("%s: %w: %q", EnvBackfill, ErrInvalid, v)
		}
		c.Backfill = v
	}
	if v, ok := lookup(EnvCompression); ok {
		c.Compression = v
	}

	addr, hasAddr := lookup(EnvRedisAddr)
	password, hasPassword := lookup(EnvRedisPassword)
	servers, hasServers := lookup(EnvMemcacheServers)

	for i := range c.Tiers {
		t := &c.Tiers[i]
		switch t.Kind {
		case KindRedis:
			if t.Redis == nil {
				t.Redis = &RedisCfg{}
			}
			if hasAddr {
				t.Redis.Addr = addr
			}
			if hasPassword {
				t.Redis.Password = password
			}
		case KindMemcache:
			if t.Memcache == nil {
				t.Memcache = &MemcacheCfg{}
			}
			if hasServers {
				t.Memcache.Servers = splitList(servers)
			}
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
