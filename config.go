package quadgo

import (
	"fmt"
	"time"
)

// Config contains capacity and feature settings for a repository.
type Config struct {
	// MaxSpatialEntries is the maximum number of entries in the point cache.
	// The oldest entries are evicted in batches once the bound is exceeded.
	MaxSpatialEntries int `json:"max_spatial_entries"`

	// MaxQueryEntries is the maximum number of entries in the range cache.
	MaxQueryEntries int `json:"max_query_entries"`

	// TTL is how long cached entries and clusters stay fresh.
	// Zero disables expiry.
	TTL time.Duration `json:"ttl"`

	// GridSize is the cluster cell edge length in world units.
	GridSize float64 `json:"grid_size"`

	// EnableClustering turns on the grid cluster layer. Point lookups then
	// consult cluster consensus before scanning the tree.
	EnableClustering bool `json:"enable_clustering"`

	// EnableQueryCache turns on the range cache for repeated bounds queries.
	EnableQueryCache bool `json:"enable_query_cache"`

	// CompressionEnabled compresses cached range payloads.
	CompressionEnabled bool `json:"compression_enabled"`
}

// DefaultConfig returns a default repository configuration.
func DefaultConfig() Config {
	return Config{
		MaxSpatialEntries:  10000,
		MaxQueryEntries:    1000,
		TTL:                5 * time.Minute,
		GridSize:           64,
		EnableClustering:   true,
		EnableQueryCache:   true,
		CompressionEnabled: false,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.MaxSpatialEntries <= 0 {
		return fmt.Errorf("%w: max_spatial_entries must be positive, got %d", ErrInvalidConfig, c.MaxSpatialEntries)
	}
	if c.EnableQueryCache && c.MaxQueryEntries <= 0 {
		return fmt.Errorf("%w: max_query_entries must be positive, got %d", ErrInvalidConfig, c.MaxQueryEntries)
	}
	if c.TTL < 0 {
		return fmt.Errorf("%w: ttl must not be negative, got %v", ErrInvalidConfig, c.TTL)
	}
	if c.EnableClustering && c.GridSize <= 0 {
		return fmt.Errorf("%w: grid_size must be positive, got %v", ErrInvalidConfig, c.GridSize)
	}
	return nil
}
