package cache

import (
	"time"

	"github.com/hupe1980/quadgo/codec"
	"github.com/hupe1980/quadgo/resource"
)

// Options configures a cache instance.
type Options struct {
	// MaxEntries is the soft capacity. After a set pushes the cache past
	// this limit, a batch eviction brings it back below.
	MaxEntries int

	// TTL is the entry time-to-live measured from the entry's timestamp.
	// Expired entries are treated as misses and removed lazily.
	// Zero disables expiry.
	TTL time.Duration

	// EvictionBuffer is the number of extra entries removed beyond the
	// capacity overshoot, so that one batch eviction amortizes across
	// many future sets. Zero evicts exactly down to MaxEntries.
	EvictionBuffer int

	// Compression selects the payload compression algorithm.
	// Only used by the range cache.
	Compression CompressionType

	// Codec encodes result sets into cacheable payloads.
	// Only used by the range cache.
	Codec codec.Codec

	// Controller optionally enforces a global memory budget on stored
	// payloads. Only used by the range cache. May be nil.
	Controller *resource.Controller
}

// DefaultPointOptions returns the default options for a point cache.
func DefaultPointOptions() Options {
	return Options{
		MaxEntries:     10000,
		TTL:            5 * time.Minute,
		EvictionBuffer: 100,
	}
}

// DefaultRangeOptions returns the default options for a range cache.
func DefaultRangeOptions() Options {
	return Options{
		MaxEntries:     1000,
		TTL:            5 * time.Minute,
		EvictionBuffer: 50,
		Compression:    CompressionNone,
		Codec:          codec.Default,
	}
}
