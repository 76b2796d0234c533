package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// MessageHandler is the processing step applied to every received message.
// Whatever it returns, the message is deleted afterwards.
type MessageHandler interface {
	Handle(ctx context.Context, msg Message) error
}

type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// LogHandler is the default handler: it only logs the message. Business logic
// plugs in by replacing it.
func LogHandler(quiet bool) MessageHandler {
	return HandlerFunc(func(ctx context.Context, msg Message) error {
		ml := log.With().Str("message_id", msg.ID).Logger()

		if quiet {
			ml.Debug().Msg("Processing message")
		} else {
			ml.Info().Msg("Processing message")
		}
		ml.Debug().Str("body", msg.Body).Interface("attributes", msg.Attributes).Msg("Message body")
		return nil
	})
}

// handleSafely runs the handler and turns a panic into an error
func handleSafely(ctx context.Context, h MessageHandler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, msg)
}

type deduplicatingHandler struct {
	next  MessageHandler
	store DeduplicationStore
}

// NewDeduplicatingHandler skips messages whose id the store has already seen.
// Skipped messages are still deleted by the loop. This narrows redelivery
// duplicates but does not make processing exactly-once.
func NewDeduplicatingHandler(next MessageHandler, store DeduplicationStore) MessageHandler {
	return &deduplicatingHandler{next: next, store: store}
}

func (d *deduplicatingHandler) Handle(ctx context.Context, msg Message) error {
	processed, err := d.store.IsProcessed(ctx, msg.ID)
	if err != nil {
		// the store being down should not stop the flow of messages
		log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to check if message was processed")
	} else if processed {
		log.Info().Str("message_id", msg.ID).Msg("Duplicate message detected, skipping")
		return nil
	}

	if err := d.next.Handle(ctx, msg); err != nil {
		return err
	}

	if err := d.store.MarkProcessed(ctx, msg.ID); err != nil {
		log.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to mark message as processed")
	}
	return nil
}

// cleanupDeduplicationStore prunes old entries until ctx is cancelled
func cleanupDeduplicationStore(ctx context.Context, store DeduplicationStore, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := store.Cleanup(ctx, retention); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error().Err(err).Msg("Failed to cleanup deduplication store")
			} else {
				log.Debug().Msg("Cleaned up old deduplication entries")
			}
		case <-ctx.Done():
			return nil
		}
	}
}
