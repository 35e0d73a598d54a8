package integrations

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Delivery is an inbound GitHub webhook delivery as received on the wire.
type Delivery struct {
	WorkspaceSlug string
	Event         string // X-GitHub-Event header
	DeliveryID    string // X-GitHub-Delivery header
	Signature     string // X-Hub-Signature-256 header
	Payload       []byte
}

// queuedDelivery is the envelope pushed to the processing queue.
type queuedDelivery struct {
	WorkspaceSlug string          `json:"workspaceSlug"`
	Event         string          `json:"event"`
	DeliveryID    string          `json:"deliveryId"`
	ReceivedAt    time.Time       `json:"receivedAt"`
	Payload       json.RawMessage `json:"payload"`
}

// deliveryRepository is the minimal payload shape needed to resolve the
// repository a delivery belongs to.
type deliveryRepository struct {
	Repository struct {
		HTMLURL string `json:"html_url"`
	} `json:"repository"`
}

// VerifyAndEnqueueDelivery authenticates a webhook delivery against the
// repository's stored signing secret and hands the raw payload to the
// processing queue. Event semantics are not interpreted here.
func (s *Service) VerifyAndEnqueueDelivery(ctx context.Context, d Delivery) error {
	start := time.Now()
	s.metrics.IncWebhook(ctx, d.Event, "received")

	l := s.logger.With().
		Str("workspace", d.WorkspaceSlug).
		Str("event", d.Event).
		Str("delivery_id", d.DeliveryID).
		Logger()

	if s.queue == nil {
		return errors.New("delivery queue is not configured")
	}
	if len(d.Payload) == 0 {
		s.metrics.IncWebhookValidationFailure(ctx, "empty_payload")
		return fmt.Errorf("%w: delivery payload is empty", ErrValidation)
	}

	workspace, err := s.workspaces.GetWorkspaceBySlug(ctx, d.WorkspaceSlug)
	if err != nil {
		return fmt.Errorf("failed to look up workspace: %w", err)
	}
	ws, ok := workspace.Get()
	if !ok {
		s.metrics.IncWebhookValidationFailure(ctx, "unknown_workspace")
		return fmt.Errorf("%w: workspace %q", ErrNotFound, d.WorkspaceSlug)
	}

	var payload deliveryRepository
	if err := json.Unmarshal(d.Payload, &payload); err != nil || payload.Repository.HTMLURL == "" {
		s.metrics.IncWebhookValidationFailure(ctx, "missing_repository")
		return fmt.Errorf("%w: delivery payload has no repository", ErrValidation)
	}

	repository, err := s.repositories.GetRepositoryByURL(ctx, ws.ID, payload.Repository.HTMLURL)
	if err != nil {
		return fmt.Errorf("failed to look up repository: %w", err)
	}
	repo, ok := repository.Get()
	if !ok {
		s.metrics.IncWebhookValidationFailure(ctx, "unknown_repository")
		return fmt.Errorf("%w: repository is not linked to workspace %q", ErrNotFound, d.WorkspaceSlug)
	}
	if repo.GithubWebhookSecret == nil {
		s.metrics.IncWebhookValidationFailure(ctx, "no_secret")
		return fmt.Errorf("%w: repository has no webhook configured", ErrNotFound)
	}

	secret, err := s.vault.DecryptField(fieldWebhookSecret, *repo.GithubWebhookSecret)
	if err != nil {
		return fmt.Errorf("failed to decrypt webhook secret: %w", err)
	}

	if !verifySignature(d.Payload, d.Signature, secret) {
		s.metrics.IncWebhookValidationFailure(ctx, "invalid_signature")
		l.Warn().Msg("Webhook delivery failed signature verification")
		return fmt.Errorf("%w: webhook signature verification failed", ErrUnauthenticated)
	}

	envelope, err := json.Marshal(queuedDelivery{
		WorkspaceSlug: d.WorkspaceSlug,
		Event:         d.Event,
		DeliveryID:    d.DeliveryID,
		ReceivedAt:    time.Now().UTC(),
		Payload:       d.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal delivery envelope: %w", err)
	}

	if err := s.queue.PushMessageToQueue(ctx, l, string(envelope)); err != nil {
		s.metrics.IncWebhook(ctx, d.Event, "failed")
		return fmt.Errorf("failed to enqueue webhook delivery: %w", err)
	}

	s.metrics.IncWebhook(ctx, d.Event, "enqueued")
	s.metrics.RecordWebhookDuration(ctx, d.Event, time.Since(start))
	l.Info().Msg("Webhook delivery enqueued")
	return nil
}

// verifySignature checks a GitHub X-Hub-Signature-256 header value against
// the payload in constant time.
func verifySignature(payload []byte, signature, secret string) bool {
	provided, found := strings.CutPrefix(signature, "sha256=")
	if !found || provided == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}
