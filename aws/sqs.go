package aws

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// messageGroupID groups hivebridge deliveries when the queue is FIFO.
const messageGroupID = "hivebridge-deliveries"

// PushMessageToQueue sends a message to the configured SQS queue.
func (c *Client) PushMessageToQueue(
	ctx context.Context,
	l zerolog.Logger,
	payload string) error {
	start := time.Now()

	if c.sqsClient == nil {
		c.metrics.IncSQSOperations(ctx, "send_failed")
		return fmt.Errorf("SQS client is not initialized")
	}
	if payload == "" {
		c.metrics.IncSQSOperations(ctx, "send_failed")
		return fmt.Errorf("message payload cannot be empty")
	}

	message := &sqs.SendMessageInput{
		MessageBody: &payload,
		QueueUrl:    &c.queueURL,
	}

	// FIFO queues require a group id and deduplicate on a content hash.
	if strings.HasSuffix(c.queueURL, ".fifo") {
		groupID := messageGroupID
		message.MessageGroupId = &groupID

		hasher := sha256.New()
		hasher.Write([]byte(payload))
		deduplicationID := fmt.Sprintf("%x", hasher.Sum(nil))
		message.MessageDeduplicationId = &deduplicationID
	}

	res, err := c.sqsClient.SendMessage(ctx, message)
	c.metrics.RecordSQSSendLatency(ctx, time.Since(start))
	if err != nil {
		c.metrics.IncSQSOperations(ctx, "send_failed")
		l.Error().Err(err).Msg("Failed to send message to SQS queue")
		return fmt.Errorf("failed to send message to SQS queue: %w", err)
	}
	c.metrics.IncSQSOperations(ctx, "send_success")

	messageID := "unknown"
	if res.MessageId != nil {
		messageID = *res.MessageId
	}
	l.Debug().Str("message_id", messageID).Msg("Message sent to SQS queue")
	return nil
}
