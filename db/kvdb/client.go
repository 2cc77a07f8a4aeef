package kvdb

import (
	"context"
	"errors"
	"time"
)

// Client is the key-value backend used for invoice documents, staged exports and web sessions.
type Client interface {
	Init() error
	Close() error
	GetConf() *Conf

	//---- Key Ops ----

	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, keys ...string) (int64, error)
	// Expire sets/updates expiration for a key
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) // found & updated, err

	// ScanKeys iterates over keys matching a glob pattern in batches.
	// The cursor is backend-specific and opaque to callers. A nil nextCursor ends the scan.
	ScanKeys(ctx context.Context, match string, cursor any, scanBatchSize int) ([]string, any, error)

	//---- Single-value Ops ----

	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error) // val, found, err
}

var ErrNotSupported = errors.New("kvdb: operation not supported")

// AllKeys drains ScanKeys for a pattern.
func AllKeys(ctx context.Context, c Client, match string) ([]string, error) {
	var (
		all    []string
		cursor any
	)
	for {
		keys, next, err := c.ScanKeys(ctx, match, cursor, 100)
		if err != nil {
			return nil, err
		}
		all = append(all, keys...)
		if next == nil {
			return all, nil
		}
		cursor = next
	}
}
