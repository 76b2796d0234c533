package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Queue is what the processing loop needs from the queue client.
type Queue interface {
	Poll(ctx context.Context) ([]Message, error)
	Delete(ctx context.Context, msg Message) error
}

// ProcessingLoop drains the queue until the shutdown signal is observed.
// Delivery is at-least-once: every received message is deleted after the
// handler ran, whether it succeeded or not.
type ProcessingLoop struct {
	queue    Queue
	handler  MessageHandler
	shutdown *ShutdownSignal
	backoff  Backoff
	metrics  *Metrics
	quiet    bool

	// pause is swapped in tests to observe backoff delays
	pause func(d time.Duration, stop <-chan struct{})
}

func NewProcessingLoop(queue Queue, handler MessageHandler, shutdown *ShutdownSignal, backoff Backoff, metrics *Metrics, quiet bool) *ProcessingLoop {
	return &ProcessingLoop{
		queue:    queue,
		handler:  handler,
		shutdown: shutdown,
		backoff:  backoff,
		metrics:  metrics,
		quiet:    quiet,
		pause:    sleep,
	}
}

// Run checks the shutdown signal before every poll. A batch already received
// is always finished before Run returns. ctx is used for the SQS calls and
// the handler; cancelling it is not how the loop is stopped.
func (l *ProcessingLoop) Run(ctx context.Context) {
	log.Info().Msg("Processing loop started")

	for !l.shutdown.IsSet() {
		if err := l.RunCycle(ctx); err != nil {
			delay := l.backoff.Next()
			log.Error().Err(err).Dur("retry_in", delay).Msg("Error polling messages")
			l.metrics.PollBackoffs.Inc()
			l.pause(delay, l.shutdown.Done())
			continue
		}
		l.backoff.Reset()
	}

	log.Info().Msg("Processing loop stopped")
}

// RunCycle polls once and processes the returned batch in order. Only a poll
// failure is returned; per-message failures are logged and counted.
func (l *ProcessingLoop) RunCycle(ctx context.Context) error {
	messages, err := l.queue.Poll(ctx)
	if err != nil {
		return err
	}

	for _, msg := range messages {
		l.processMessage(ctx, msg)
	}
	return nil
}

func (l *ProcessingLoop) processMessage(ctx context.Context, msg Message) {
	ml := log.With().Str("message_id", msg.ID).Logger()

	start := time.Now()
	err := handleSafely(ctx, l.handler, msg)
	l.metrics.ProcessDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		l.metrics.MessagesProcessed.WithLabelValues("error").Inc()
		ml.Error().Err(err).Msg("Message processing failed, deleting anyway")
	} else {
		l.metrics.MessagesProcessed.WithLabelValues("ok").Inc()
		if l.quiet {
			ml.Debug().Dur("duration", time.Since(start)).Msg("Message processed")
		} else {
			ml.Info().Dur("duration", time.Since(start)).Msg("Message processed")
		}
	}

	// a failed delete means redelivery after the visibility timeout
	if err := l.queue.Delete(ctx, msg); err != nil {
		ml.Error().Err(err).Msg("Failed to delete message")
	}
}
