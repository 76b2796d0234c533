package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/test-queue"

func newTestQueueService() (*QueueService, *MockSQSClient, *Metrics) {
	mockSQS := new(MockSQSClient)
	metrics := newTestMetrics()

	queue := NewQueueService(mockSQS, SQSConfig{
		QueueURL:          testQueueURL,
		MaxMessages:       5,
		WaitTimeSeconds:   10,
		VisibilityTimeout: 60,
	}, metrics)

	return queue, mockSQS, metrics
}

func TestQueueServicePoll(t *testing.T) {
	queue, mockSQS, metrics := newTestQueueService()

	mockSQS.On("ReceiveMessage", mock.Anything, mock.MatchedBy(func(in *sqs.ReceiveMessageInput) bool {
		return aws.ToString(in.QueueUrl) == testQueueURL &&
			in.MaxNumberOfMessages == 5 &&
			in.WaitTimeSeconds == 10 &&
			in.VisibilityTimeout == 60 &&
			len(in.MessageSystemAttributeNames) == 1 &&
			in.MessageSystemAttributeNames[0] == types.MessageSystemAttributeNameAll &&
			len(in.MessageAttributeNames) == 1 &&
			in.MessageAttributeNames[0] == "All"
	})).Return(&sqs.ReceiveMessageOutput{
		Messages: []types.Message{sqsMessage("a"), sqsMessage("b")},
	}, nil)

	messages, err := queue.Poll(context.Background())
	require.NoError(t, err)

	require.Len(t, messages, 2)
	assert.Equal(t, "a", messages[0].ID)
	assert.Equal(t, "receipt-handle-a", messages[0].ReceiptHandle)
	assert.Equal(t, "Hello, world!", messages[0].Body)
	assert.Equal(t, "b", messages[1].ID)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.MessagesReceived))
	mockSQS.AssertExpectations(t)
}

func TestQueueServicePollEmpty(t *testing.T) {
	queue, mockSQS, _ := newTestQueueService()

	mockSQS.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{}, nil)

	messages, err := queue.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestQueueServicePollError(t *testing.T) {
	queue, mockSQS, metrics := newTestQueueService()

	cause := errors.New("network unreachable")
	mockSQS.On("ReceiveMessage", mock.Anything, mock.Anything).Return(nil, cause)

	messages, err := queue.Poll(context.Background())

	assert.Nil(t, messages)
	assert.ErrorIs(t, err, cause)
	assert.ErrorContains(t, err, "failed to receive messages from SQS")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.PollErrors))
}

func TestQueueServiceDelete(t *testing.T) {
	queue, mockSQS, metrics := newTestQueueService()

	mockSQS.On("DeleteMessage", mock.Anything, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(testQueueURL),
		ReceiptHandle: aws.String("receipt-handle-12345"),
	}).Return(&sqs.DeleteMessageOutput{}, nil)

	err := queue.Delete(context.Background(), Message{ID: "12345", ReceiptHandle: "receipt-handle-12345"})

	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MessagesDeleted.WithLabelValues("ok")))
	mockSQS.AssertExpectations(t)
}

func TestQueueServiceDeleteError(t *testing.T) {
	queue, mockSQS, metrics := newTestQueueService()

	cause := errors.New("receipt handle is invalid")
	mockSQS.On("DeleteMessage", mock.Anything, mock.Anything).Return(nil, cause)

	err := queue.Delete(context.Background(), Message{ID: "12345", ReceiptHandle: "stale"})

	assert.ErrorIs(t, err, cause)
	assert.ErrorContains(t, err, "failed to delete message from SQS")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MessagesDeleted.WithLabelValues("error")))
}

func TestQueueServiceStats(t *testing.T) {
	queue, mockSQS, metrics := newTestQueueService()

	mockSQS.On("GetQueueAttributes", mock.Anything, mock.Anything).Return(&sqs.GetQueueAttributesOutput{
		Attributes: map[string]string{
			string(types.QueueAttributeNameApproximateNumberOfMessages):           "42",
			string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible): "7",
			string(types.QueueAttributeNameApproximateNumberOfMessagesDelayed):    "not-a-number",
		},
	}, nil)

	queue.logQueueStats(context.Background())

	assert.Equal(t, float64(42), testutil.ToFloat64(metrics.QueueMessages.WithLabelValues("available")))
	assert.Equal(t, float64(7), testutil.ToFloat64(metrics.QueueMessages.WithLabelValues("in_flight")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.QueueMessages))
}

func TestQueueServiceStatsError(t *testing.T) {
	queue, mockSQS, metrics := newTestQueueService()

	mockSQS.On("GetQueueAttributes", mock.Anything, mock.Anything).Return(nil, errors.New("forbidden"))

	queue.logQueueStats(context.Background())

	assert.Equal(t, 0, testutil.CollectAndCount(metrics.QueueMessages))
}

func TestMonitorQueueStatsStopsOnCancel(t *testing.T) {
	queue, _, _ := newTestQueueService()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, queue.MonitorQueueStats(ctx, time.Hour))
}

func TestNewSQSClient(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")

	client, err := NewSQSClient(context.Background(), &Config{
		SQS: SQSConfig{Endpoint: "http://localhost:4566", MaxRetryAttempts: 3},
		AWS: AWSConfig{Region: "us-east-1"},
	})

	require.NoError(t, err)
	assert.NotNil(t, client)
}
