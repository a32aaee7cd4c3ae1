package ports

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by KVStore.Get when nothing is stored under key.
var ErrKeyNotFound = errors.New("key not found")

// KVStore is the persistence service the user directory is stored in.
// Each value is read and written whole; Set is assumed to be atomic.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// Swapper is implemented by stores that can replace a value only if it still
// holds what the caller last read. A nil old value means the key must be absent.
// It reports false, without error, when the stored value no longer matches.
type Swapper interface {
	CompareAndSwap(ctx context.Context, key string, old, value []byte) (bool, error)
}
