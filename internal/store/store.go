package store

import "errors"

var (
	// ErrNotFound means the key has no record.
	ErrNotFound = errors.New("store: record not found")
	// ErrNoSpace means the store is at capacity; callers compact and
	// retry once, then give up on the batch.
	ErrNoSpace = errors.New("store: out of space")
)

// Store is the flash-style record store the minute-file sink writes to.
// Keys are binary-safe strings. Iteration order is unspecified.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Each calls fn for every record until fn returns false.
	Each(fn func(key string, value []byte) bool) error
	// RewriteFiltered keeps only records for which keep returns true.
	// Used for oldest-record compaction when space runs out.
	RewriteFiltered(keep func(key string, value []byte) bool) error
	Close() error
}
