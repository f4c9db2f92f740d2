package quadgo

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is returned when a coordinate lies outside the world
	// bounds the repository spans.
	ErrOutOfBounds = errors.New("coordinate outside world bounds")

	// ErrClusteringDisabled is returned by cluster operations when the
	// repository was configured with EnableClustering false.
	ErrClusteringDisabled = errors.New("spatial clustering disabled")

	// ErrInvalidConfig is returned by New when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid config")
)

// RepositoryError indicates a failure in the spatial store itself, such as a
// write rejected by the tree index.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type RepositoryError struct {
	Op    string
	cause error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.cause)
}

func (e *RepositoryError) Unwrap() error { return e.cause }

// CacheError indicates a failure in one of the cache layers, typically a
// codec or compression fault while materializing a range payload.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type CacheError struct {
	Op    string
	cause error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.cause)
}

func (e *CacheError) Unwrap() error { return e.cause }
