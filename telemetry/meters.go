package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	httpMeter        = otel.Meter("hivebridge/http")
	githubMeter      = otel.Meter("hivebridge/github")
	awsMeter         = otel.Meter("hivebridge/aws")
	webhookMeter     = otel.Meter("hivebridge/webhook")
	integrationMeter = otel.Meter("hivebridge/integrations")
)

// HTTP Server Metrics

// IncHTTPRequest increments the HTTP operations counter with the specified operation.
// It uses the provided context to add the operation as an attribute.
func (m *Metrics) IncHTTPRequest(ctx context.Context, status int, method, uri string) {
	counter, _ := httpMeter.Int64Counter("http.requests",
		metric.WithDescription("Count of HTTP requests"),
		metric.WithUnit("1"))
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("status", status),
		attribute.String("method", method),
		attribute.String("uri", uri),
	))
}

// IncHTTPError increments the HTTP error counter with the specified status code.
// It uses the provided context to add the status code as an attribute.
func (m *Metrics) IncHTTPError(ctx context.Context, status int) {
	counter, _ := httpMeter.Int64Counter("http.errors",
		metric.WithDescription("Count of HTTP errors"),
		metric.WithUnit("1"))
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("status", status),
	))
}

// Webhook Delivery Metrics

// IncWebhook increments the webhook counter by event type and status.
func (m *Metrics) IncWebhook(ctx context.Context, event, status string) {
	counter, _ := webhookMeter.Int64Counter("webhook.received",
		metric.WithDescription("Count of webhook deliveries received"),
		metric.WithUnit("1"))
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("status", status),
	))
}

// RecordWebhookDuration records the time taken to handle a webhook delivery.
func (m *Metrics) RecordWebhookDuration(ctx context.Context, event string, duration time.Duration) {
	histogram, _ := webhookMeter.Float64Histogram("webhook.duration",
		metric.WithDescription("Duration of webhook delivery handling"),
		metric.WithUnit("ms"))
	histogram.Record(ctx, duration.Seconds()*1000, metric.WithAttributes(
		attribute.String("event", event),
	))
}

// IncWebhookValidationFailure increments webhook signature validation failures.
func (m *Metrics) IncWebhookValidationFailure(ctx context.Context, reason string) {
	counter, _ := webhookMeter.Int64Counter("webhook.validation.failures",
		metric.WithDescription("Count of webhook validation failures"),
		metric.WithUnit("1"))
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// Integration Flow Metrics

// IncInstallIntent increments the install intent counter by selected flow.
func (m *Metrics) IncInstallIntent(ctx context.Context, flow string) {
	counter, _ := integrationMeter.Int64Counter("integration.install.intents",
		metric.WithDescription("Count of GitHub App install intents by flow"),
		metric.WithUnit("1"))
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
	))
}

// IncWebhookEnsure increments the webhook reconciliation counter by action.
func (m *Metrics) IncWebhookEnsure(ctx context.Context, action string) {
	counter, _ := integrationMeter.Int64Counter("integration.webhook.ensures",
		metric.WithDescription("Count of repository webhook reconciliations"),
		metric.WithUnit("1"))
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action), // created, updated, failed
	))
}

// GitHub API Metrics

// RecordGitHubAPILatency records GitHub API call latency.
func (m *Metrics) RecordGitHubAPILatency(ctx context.Context, operation string, duration time.Duration) {
	histogram, _ := githubMeter.Float64Histogram("github.api.latency",
		metric.WithDescription("GitHub API call latency"),
		metric.WithUnit("ms"))
	histogram.Record(ctx, duration.Seconds()*1000, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// IncGitHubRateLimitHit increments GitHub rate limit hits.
func (m *Metrics) IncGitHubRateLimitHit(ctx context.Context) {
	counter, _ := githubMeter.Int64Counter("github.rate.limit.hits",
		metric.WithDescription("Count of GitHub rate limit hits"),
		metric.WithUnit("1"))
	counter.Add(ctx, 1)
}

// AWS SQS Metrics

// IncSQSOperations increments the AWS SQS operations counter with the specified operation.
// It uses the provided context to add the operation as an attribute.
func (m *Metrics) IncSQSOperations(ctx context.Context, operation string) {
	counter, _ := awsMeter.Int64Counter("aws.sqs.operations",
		metric.WithDescription("Count of AWS SQS operations"),
		metric.WithUnit("1"))
	counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// RecordSQSSendLatency records SQS message send latency.
func (m *Metrics) RecordSQSSendLatency(ctx context.Context, duration time.Duration) {
	histogram, _ := awsMeter.Float64Histogram("aws.sqs.send.latency",
		metric.WithDescription("SQS message send latency"),
		metric.WithUnit("ms"))
	histogram.Record(ctx, duration.Seconds()*1000)
}
