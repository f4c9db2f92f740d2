// Package cache provides the LRU+TTL caches sitting between the spatial
// tree and its callers: a point cache keyed by discretized coordinates and
// a range cache keyed by hashed query signatures.
//
// Both caches share the same lifecycle rules. Entries expire after a TTL
// measured from their timestamp and are treated as misses without being
// proactively removed. Capacity is enforced by batch eviction after each
// set: once the cache exceeds MaxEntries, the overshoot plus an eviction
// buffer is removed in a single pass, amortizing the cost over many future
// sets. The point cache evicts by last access, the range cache by insertion
// time.
//
// Range payloads are stored codec-encoded and optionally LZ4- or
// ZSTD-compressed, so cached result sets are immutable and their memory can
// be budgeted through a resource.Controller.
package cache
