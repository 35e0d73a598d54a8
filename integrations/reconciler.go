package integrations

import (
	"context"
	"fmt"
	"strconv"

	gogithub "github.com/google/go-github/v73/github"
	"github.com/rs/zerolog"

	"github.com/stakwork/hivebridge/github"
	"github.com/stakwork/hivebridge/models"
	"github.com/stakwork/hivebridge/secrets"
)

// fieldWebhookSecret is the logical field name webhook secrets are sealed
// under. Changing it invalidates every stored secret.
const fieldWebhookSecret = "githubWebhookSecret"

// WebhookResult is the reconciled webhook: the remote hook id and the
// plaintext signing secret.
type WebhookResult struct {
	ID     int64  `json:"webhookId"`
	Secret string `json:"webhookSecret"`
}

// EnsureRepoWebhook idempotently ensures the repository has exactly one
// webhook pointed at callbackURL. An existing hook with a matching config URL
// is updated in place; otherwise a hook is created. The signing secret is
// reused from storage when one decrypts, generated fresh otherwise, and
// persisted (encrypted) together with the hook id only after the remote call
// succeeds. When callbackURL is empty the configured callback URL is used.
//
// Concurrent calls for the same repository are weakly idempotent: both
// converge on the matching hook, last persisted secret wins.
func (s *Service) EnsureRepoWebhook(ctx context.Context, userID, workspaceID, repositoryURL, callbackURL string) (WebhookResult, error) {
	if userID == "" {
		return WebhookResult{}, fmt.Errorf("%w: missing user", ErrUnauthenticated)
	}
	if callbackURL == "" {
		callbackURL = s.callbackURL
	}
	if callbackURL == "" {
		return WebhookResult{}, fmt.Errorf("%w: callback URL is required", ErrValidation)
	}

	// Authorization resolves entirely from the database before any remote call.
	workspace, err := s.workspaces.GetWorkspaceByID(ctx, workspaceID)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("failed to look up workspace: %w", err)
	}
	if _, ok := workspace.Get(); !ok {
		return WebhookResult{}, fmt.Errorf("%w: workspace %q", ErrNotFound, workspaceID)
	}

	repository, err := s.repositories.GetRepositoryByURL(ctx, workspaceID, repositoryURL)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("failed to look up repository: %w", err)
	}
	repo, ok := repository.Get()
	if !ok {
		return WebhookResult{}, fmt.Errorf("%w: repository is not linked to the workspace", ErrNotFound)
	}

	owner, name, err := github.ParseRepoURL(repositoryURL)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	l := s.logger.With().
		Str("owner", owner).
		Str("repo", name).
		Str("callback_url", callbackURL).
		Logger()

	client := s.hookClient(ctx, owner)

	hooks, err := client.ListRepoHooks(ctx, owner, name)
	if err != nil {
		s.metrics.IncWebhookEnsure(ctx, "failed")
		l.Error().Err(err).Msg("Failed to list repository hooks")
		return WebhookResult{}, fmt.Errorf("%w: %w", ErrEnsureWebhook, err)
	}

	secret := s.reusableSecret(repo, l)
	if secret == "" {
		secret, err = secrets.GenerateWebhookSecret()
		if err != nil {
			s.metrics.IncWebhookEnsure(ctx, "failed")
			return WebhookResult{}, fmt.Errorf("%w: %w", ErrEnsureWebhook, err)
		}
	}

	req := github.HookRequest{URL: callbackURL, Secret: secret}

	var (
		hook   *gogithub.Hook
		action string
	)
	if existing := matchHook(hooks, callbackURL); existing != nil {
		hook, err = client.EditRepoHook(ctx, owner, name, existing.GetID(), req)
		action = "updated"
	} else {
		hook, err = client.CreateRepoHook(ctx, owner, name, req)
		action = "created"
	}
	if err != nil {
		s.metrics.IncWebhookEnsure(ctx, "failed")
		l.Error().Err(err).Str("action", action).Msg("Failed to configure repository hook")
		return WebhookResult{}, fmt.Errorf("%w: %w", ErrEnsureWebhook, err)
	}

	blob, err := s.vault.EncryptField(fieldWebhookSecret, secret)
	if err != nil {
		s.metrics.IncWebhookEnsure(ctx, "failed")
		return WebhookResult{}, fmt.Errorf("%w: %w", ErrEnsureWebhook, err)
	}
	if err := s.repositories.UpdateRepositoryWebhook(ctx, repo.ID, strconv.FormatInt(hook.GetID(), 10), blob); err != nil {
		s.metrics.IncWebhookEnsure(ctx, "failed")
		l.Error().Err(err).Msg("Failed to persist reconciled webhook")
		return WebhookResult{}, fmt.Errorf("%w: %w", ErrEnsureWebhook, err)
	}

	s.metrics.IncWebhookEnsure(ctx, action)
	l.Info().Int64("hook_id", hook.GetID()).Str("action", action).Msg("Repository webhook ensured")

	return WebhookResult{ID: hook.GetID(), Secret: secret}, nil
}

// reusableSecret returns the stored webhook secret when one exists and still
// decrypts. A stored secret is never regenerated; losing one (key rotation,
// corruption) falls back to generating fresh.
func (s *Service) reusableSecret(repo models.Repository, l zerolog.Logger) string {
	if repo.GithubWebhookSecret == nil {
		return ""
	}
	secret, err := s.vault.DecryptField(fieldWebhookSecret, *repo.GithubWebhookSecret)
	if err != nil {
		l.Warn().Err(err).Msg("Stored webhook secret no longer decrypts, generating a new one")
		return ""
	}
	return secret
}

// hookClient returns the client hook calls go through. When the repository
// owner has a known App installation and installation-scoped clients are
// configured, calls authenticate as that installation.
func (s *Service) hookClient(ctx context.Context, owner string) GitHubAPI {
	if s.installationClients == nil {
		return s.github
	}
	org, err := s.sourceControlOrgs.GetSourceControlOrgByLogin(ctx, owner)
	if err != nil {
		return s.github
	}
	sco, ok := org.Get()
	if !ok || sco.GithubInstallationID == nil {
		return s.github
	}
	scoped, err := s.installationClients(*sco.GithubInstallationID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("installation_id", *sco.GithubInstallationID).
			Msg("Failed to scope client to installation, using base client")
		return s.github
	}
	return scoped
}

// matchHook finds the hook whose config URL equals callbackURL. The config
// URL is the idempotency key; event sets and other fields do not participate.
func matchHook(hooks []*gogithub.Hook, callbackURL string) *gogithub.Hook {
	for _, hook := range hooks {
		if hook.GetConfig().GetURL() == callbackURL {
			return hook
		}
	}
	return nil
}
