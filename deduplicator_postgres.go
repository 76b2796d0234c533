package main

import (
	"context"
	"time"
)

type PostgresDeduplicationStore struct {
	queries *Queries
}

func NewPostgresDeduplicationStore(db DBTX) *PostgresDeduplicationStore {
	return &PostgresDeduplicationStore{queries: New(db)}
}

func (p *PostgresDeduplicationStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	return p.queries.IsMessageProcessed(ctx, messageID)
}

func (p *PostgresDeduplicationStore) MarkProcessed(ctx context.Context, messageID string) error {
	return p.queries.MarkMessageProcessed(ctx, messageID, time.Now())
}

func (p *PostgresDeduplicationStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	return p.queries.DeleteProcessedBefore(ctx, time.Now().Add(-olderThan))
}

func (p *PostgresDeduplicationStore) Close() error {
	// DB connection is managed elsewhere, nothing to close here
	return nil
}
