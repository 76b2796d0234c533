package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

// the subset of the SQS API the worker uses
type SQSClientInterface interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// builds the queue client dependency; a failure here is fatal at startup
type QueueClientFactory func(ctx context.Context, cfg *Config) (SQSClientInterface, error)

func NewSQSClient(ctx context.Context, cfg *Config) (SQSClientInterface, error) {
	awsCFG, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return sqs.NewFromConfig(awsCFG, func(o *sqs.Options) {
		o.Retryer = retry.AddWithMaxAttempts(o.Retryer, cfg.SQS.MaxRetryAttempts+1)
		if cfg.SQS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SQS.Endpoint)
		}
	}), nil
}

// QueueService wraps the SQS client with the configured queue and poll
// parameters. It holds no mutable state and is safe for concurrent use.
type QueueService struct {
	client  SQSClientInterface
	config  SQSConfig
	metrics *Metrics
}

func NewQueueService(client SQSClientInterface, cfg SQSConfig, metrics *Metrics) *QueueService {
	return &QueueService{
		client:  client,
		config:  cfg,
		metrics: metrics,
	}
}

// Poll performs one long poll. An empty slice is a normal result.
func (q *QueueService) Poll(ctx context.Context) ([]Message, error) {
	log.Debug().Str("queue_url", q.config.QueueURL).Msg("Polling for messages")

	start := time.Now()
	result, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(q.config.QueueURL),
		MaxNumberOfMessages:         q.config.MaxMessages,
		WaitTimeSeconds:             q.config.WaitTimeSeconds,
		VisibilityTimeout:           q.config.VisibilityTimeout,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameAll},
		MessageAttributeNames:       []string{"All"},
	})
	q.metrics.PollDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		q.metrics.PollErrors.Inc()
		return nil, fmt.Errorf("failed to receive messages from SQS: %w", err)
	}

	messages := make([]Message, 0, len(result.Messages))
	for _, m := range result.Messages {
		messages = append(messages, newMessage(m))
	}

	q.metrics.MessagesReceived.Add(float64(len(messages)))
	if len(messages) > 0 {
		log.Debug().Int("count", len(messages)).Msg("Received messages from SQS")
	}

	return messages, nil
}

// Delete removes one delivery. The receipt handle is only valid for that
// delivery, so this must not be retried with a stale handle.
func (q *QueueService) Delete(ctx context.Context, msg Message) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.config.QueueURL),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		q.metrics.MessagesDeleted.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to delete message from SQS: %w", err)
	}

	q.metrics.MessagesDeleted.WithLabelValues("ok").Inc()
	log.Debug().Str("message_id", msg.ID).Msg("Message deleted from SQS")
	return nil
}

// MonitorQueueStats logs queue depth every interval until ctx is cancelled.
func (q *QueueService) MonitorQueueStats(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.logQueueStats(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (q *QueueService) logQueueStats(ctx context.Context) {
	result, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(q.config.QueueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
			types.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
			types.QueueAttributeNameApproximateNumberOfMessagesDelayed,
		},
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Error().Err(err).Msg("Failed to fetch queue stats")
		}
		return
	}

	available := result.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	inFlight := result.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)]
	delayed := result.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessagesDelayed)]

	q.setQueueGauge("available", available)
	q.setQueueGauge("in_flight", inFlight)
	q.setQueueGauge("delayed", delayed)

	log.Info().
		Str("available", available).
		Str("in_flight", inFlight).
		Str("delayed", delayed).
		Msg("SQS queue stats")
}

func (q *QueueService) setQueueGauge(state, value string) {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return
	}
	q.metrics.QueueMessages.WithLabelValues(state).Set(n)
}
