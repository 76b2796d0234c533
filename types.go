package main

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// a single SQS delivery, immutable once built
type Message struct {
	ID            string            `json:"id"`
	ReceiptHandle string            `json:"receipt_handle"`
	Body          string            `json:"body"`
	Attributes    map[string]string `json:"attributes"`

	// string valued user attributes, binary ones are skipped
	MessageAttributes map[string]string `json:"message_attributes"`
}

// newMessage translates an SQS entry. Missing fields become empty values so
// a partially populated response can never break the batch.
func newMessage(m types.Message) Message {
	attributes := make(map[string]string, len(m.Attributes))
	for k, v := range m.Attributes {
		attributes[k] = v
	}

	messageAttributes := make(map[string]string, len(m.MessageAttributes))
	for k, v := range m.MessageAttributes {
		if v.StringValue != nil {
			messageAttributes[k] = *v.StringValue
		}
	}

	return Message{
		ID:                aws.ToString(m.MessageId),
		ReceiptHandle:     aws.ToString(m.ReceiptHandle),
		Body:              aws.ToString(m.Body),
		Attributes:        attributes,
		MessageAttributes: messageAttributes,
	}
}
