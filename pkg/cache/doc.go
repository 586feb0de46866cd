// Package cache stores ISBNdb page bodies in Redis so a rerun of the same
// query does not spend API calls on pages already downloaded.
//
// Entries are keyed by query, index and page, never by API key: every key
// sees the same catalogue.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, 24*time.Hour)
//
//	key := cache.PageKey{Query: "Manning", Index: "publisher_name", Page: 3}
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the API, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(body, manager.TTL()))
//	}
//
// # Metrics
//
//   - isbndb_cache_hits_total
//   - isbndb_cache_misses_total
//   - isbndb_cache_size_bytes
//   - isbndb_cache_errors_total{operation}
package cache
