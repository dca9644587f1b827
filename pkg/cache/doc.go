// Package cache provides the in-memory response cache of the registry client.
//
// Responses are kept in four independent partitions, one per endpoint
// Category, each with its own capacity and TTL:
//
//   - metadata   - /studies/metadata, /studies/search-areas, /studies/enums (100 entries, 24h)
//   - statistics - /stats/... (200 entries, 24h)
//   - study      - /studies/NCT... single-study lookups (1000 entries, 6h)
//   - search     - /studies search pages and everything else (1000 entries, 1h)
//
// Entries leave the cache by TTL expiry, by least-recently-used eviction
// when a partition is full, or by Manager.Clear. There is no per-key
// invalidation.
//
// # Basic Usage
//
//	manager, err := cache.NewManager(cache.DefaultPartitions())
//	if err != nil {
//		return err
//	}
//
//	key := cache.CacheKey{
//		Endpoint: "/studies",
//		Params:   map[string]string{"query.cond": "asthma", "pageSize": "50"},
//	}
//
//	if entry, ok := manager.Get(key); ok {
//		return entry.Value, nil
//	}
//	// miss - fetch upstream, then
//	manager.Set(key, body)
//
// # Keys
//
// CacheKey.Digest is a SHA-256 over the canonical key string, in which
// parameters are sorted. Parameter maps that are equal as sets therefore
// always map to the same entry.
//
// # Metrics
//
//   - ctgov_cache_hits_total{category} - Cache hits
//   - ctgov_cache_misses_total{category} - Cache misses (including expired entries)
//   - ctgov_cache_entries{category} - Live entries per partition
//   - ctgov_cache_clears_total - Full clears
package cache
