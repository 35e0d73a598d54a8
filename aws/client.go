// Package aws provides the SQS client webhook deliveries are handed to.
package aws

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stakwork/hivebridge/config"
	"github.com/stakwork/hivebridge/telemetry"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Client wraps the SQS client used to enqueue webhook deliveries.
type Client struct {
	awsConfig aws.Config
	queueURL  string
	sqsClient *sqs.Client
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
}

// ClientOption is a function that can be used to configure the AWS client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	region   string
	queueURL string
	logger   zerolog.Logger
	metrics  *telemetry.Metrics
}

// WithConfig pulls the region and queue URL from the service configuration.
func WithConfig(cfg config.Config) ClientOption {
	return func(c *clientOptions) {
		c.region = cfg.Aws.Region
		c.queueURL = cfg.Aws.SqsQueueURL
	}
}

// WithLogger sets the logger to use for the AWS client.
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(opts *clientOptions) {
		opts.logger = logger
	}
}

// WithMetrics sets the metrics instance for the AWS client.
func WithMetrics(metrics *telemetry.Metrics) ClientOption {
	return func(opts *clientOptions) {
		opts.metrics = metrics
	}
}

// NewClient creates the SQS client.
func NewClient(options ...ClientOption) (*Client, error) {
	clientOptions := &clientOptions{
		logger: zerolog.Nop(),
	}
	for _, option := range options {
		option(clientOptions)
	}

	if clientOptions.region == "" {
		return nil, fmt.Errorf("AWS region is required")
	}
	if clientOptions.queueURL == "" {
		return nil, fmt.Errorf("SQS queue URL is required")
	}

	cfg, err := aws_config.LoadDefaultConfig(context.Background(), aws_config.WithRegion(clientOptions.region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		sqsClient: sqs.NewFromConfig(cfg),
		awsConfig: cfg,
		queueURL:  clientOptions.queueURL,
		metrics:   clientOptions.metrics,
		logger: clientOptions.logger.With().
			Str("aws_region", clientOptions.region).
			Str("sqs_queue_url", clientOptions.queueURL).
			Logger(),
	}, nil
}
