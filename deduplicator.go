package main

import (
	"context"
	"errors"
	"time"
)

var errStoreClosed = errors.New("deduplication store is closed")

// tracking processed message ids
type DeduplicationStore interface {
	// checks if a message id has already been processed
	IsProcessed(ctx context.Context, messageID string) (bool, error)

	// records that a message id has been processed
	MarkProcessed(ctx context.Context, messageID string) error

	// removes entries older than the retention to prevent unbounded growth
	Cleanup(ctx context.Context, olderThan time.Duration) error

	// releases any resources, could be a noop if not required
	Close() error
}
