// Package store defines the contract every pod's backing store must satisfy:
// pooled, pipelined list/hash/blob primitives with single-key atomicity. The
// engine treats the store as a black-box remote service — frontier,
// politeness, fetcher, and parser all program against this interface, never
// against a concrete backend.
package store

import (
	"context"
	"time"
)

// Client is a pooled connection to one pod's store. Implementations MUST be
// safe for concurrent use by every worker in the process: the store itself is
// the serialization point, not the client.
type Client interface {
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
	// Close releases pooled connections.
	Close() error

	// ListPrepend pushes values onto the head of key (LPUSH semantics).
	ListPrepend(ctx context.Context, key string, values ...string) error
	// ListAppend pushes values onto the tail of key (RPUSH semantics).
	ListAppend(ctx context.Context, key string, values ...string) error
	// ListPopHead pops one value from the head of key (LPOP semantics).
	// ok is false when the list is empty.
	ListPopHead(ctx context.Context, key string) (value string, ok bool, err error)
	// ListPopTail pops one value from the tail of key (RPOP semantics).
	ListPopTail(ctx context.Context, key string) (value string, ok bool, err error)
	// BlockingPopTail pops one value from the tail of key, blocking up to
	// timeout. ok is false on timeout.
	BlockingPopTail(ctx context.Context, key string, timeout time.Duration) (value string, ok bool, err error)
	// ListLen returns the number of entries in key.
	ListLen(ctx context.Context, key string) (int64, error)

	// HashSet sets one or more fields on a hash, in a single pipelined call.
	HashSet(ctx context.Context, key string, fields map[string]string) error
	// HashSetNX sets field only if it does not already exist.
	HashSetNX(ctx context.Context, key, field, value string) error
	// HashGet returns one field's value. ok is false when absent.
	HashGet(ctx context.Context, key, field string) (value string, ok bool, err error)
	// HashGetAll returns every field on a hash.
	HashGetAll(ctx context.Context, key string) (map[string]string, error)

	// Get returns the raw bytes stored at key. ok is false when absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores raw bytes at key, overwriting any existing value.
	Set(ctx context.Context, key string, value []byte) error

	// Incr atomically increments the integer counter at key and returns the
	// new value.
	Incr(ctx context.Context, key string) (int64, error)
	// IncrBy atomically increments the integer counter at key by n and
	// returns the new value.
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
}
