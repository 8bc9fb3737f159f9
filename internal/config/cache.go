package config

import "time"

// CacheConfig controls the Redis cache in front of the public hotel catalog.
// Every entry lives under Prefix; a booking or catalog change purges the
// whole prefix, so TTL only bounds staleness for entries nobody invalidates.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool // upper-cased
	TTL          time.Duration
	KeyStrategy  string // route | method_route | method_route_query | route_query
	Prefix       string
	MaxBodyBytes int
}

func LoadCacheConfig() CacheConfig {
	cc := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      envSet("CACHE_METHODS", "GET"),
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "hotels:cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	if cc.TTL <= 0 {
		cc.TTL = 30 * time.Second
	}
	if len(cc.Methods) == 0 {
		cc.Enabled = false
	}
	return cc
}
