package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

type Database struct {
	db      *sql.DB
	queries *Queries
}

func NewDatabase(ctx context.Context, databaseURL string) (*Database, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return &Database{
		db:      db,
		queries: New(db),
	}, nil
}

// EnsureSchema creates the processed_messages table if it does not exist yet.
func (d *Database) EnsureSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, createProcessedMessagesTable); err != nil {
		return fmt.Errorf("failed to create processed_messages table: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

const createProcessedMessagesTable = `
CREATE TABLE IF NOT EXISTS processed_messages (
    message_id   TEXT PRIMARY KEY,
    processed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS processed_messages_processed_at_idx ON processed_messages (processed_at);
`

const isMessageProcessed = `-- name: IsMessageProcessed :one
SELECT EXISTS(SELECT 1 FROM processed_messages WHERE message_id = $1)
`

func (q *Queries) IsMessageProcessed(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, isMessageProcessed, messageID).Scan(&exists)
	return exists, err
}

const markMessageProcessed = `-- name: MarkMessageProcessed :exec
INSERT INTO processed_messages (message_id, processed_at)
VALUES ($1, $2)
ON CONFLICT (message_id) DO NOTHING
`

func (q *Queries) MarkMessageProcessed(ctx context.Context, messageID string, processedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, markMessageProcessed, messageID, processedAt)
	return err
}

const deleteProcessedBefore = `-- name: DeleteProcessedBefore :exec
DELETE FROM processed_messages WHERE processed_at < $1
`

func (q *Queries) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) error {
	_, err := q.db.ExecContext(ctx, deleteProcessedBefore, cutoff)
	return err
}
