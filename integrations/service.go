// Package integrations implements the GitHub App integration core: the
// webhook reconciler, the installation detector, and the flow selector that
// builds installation or authorization redirects for install-intent requests.
package integrations

import (
	"context"
	"errors"

	gogithub "github.com/google/go-github/v73/github"
	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/stakwork/hivebridge/config"
	"github.com/stakwork/hivebridge/github"
	"github.com/stakwork/hivebridge/models"
	"github.com/stakwork/hivebridge/secrets"
	"github.com/stakwork/hivebridge/telemetry"
)

// GitHubAPI is the slice of the GitHub client the service depends on.
type GitHubAPI interface {
	ListRepoHooks(ctx context.Context, owner, repo string) ([]*gogithub.Hook, error)
	CreateRepoHook(ctx context.Context, owner, repo string, req github.HookRequest) (*gogithub.Hook, error)
	EditRepoHook(ctx context.Context, owner, repo string, hookID int64, req github.HookRequest) (*gogithub.Hook, error)
	GetOwnerType(ctx context.Context, token, owner string) (github.OwnerType, error)
	FindOrgInstallation(ctx context.Context, token, org string) (int64, error)
	FindUserInstallation(ctx context.Context, token, user string) (int64, error)
}

// InstallationClients mints a GitHub client scoped to an App installation.
// Optional; when absent the service's base client handles all hook calls.
type InstallationClients func(installationID int64) (GitHubAPI, error)

// WorkspaceStore looks up workspaces.
type WorkspaceStore interface {
	GetWorkspaceByID(ctx context.Context, id string) (mo.Option[models.Workspace], error)
	GetWorkspaceBySlug(ctx context.Context, slug string) (mo.Option[models.Workspace], error)
}

// RepositoryStore looks up repositories and persists reconciled webhook state.
type RepositoryStore interface {
	GetRepositoryByURL(ctx context.Context, workspaceID, repositoryURL string) (mo.Option[models.Repository], error)
	UpdateRepositoryWebhook(ctx context.Context, repositoryID, webhookID string, secret secrets.EncryptedBlob) error
}

// SourceControlOrgStore reads known App installations by owner login.
type SourceControlOrgStore interface {
	GetSourceControlOrgByLogin(ctx context.Context, login string) (mo.Option[models.SourceControlOrg], error)
}

// SessionStore persists per-user install state and surfaces the user's GitHub
// OAuth token for the detector's API fallback.
type SessionStore interface {
	PutInstallState(ctx context.Context, userID, state string) error
	GetUserAccessToken(ctx context.Context, userID string) (mo.Option[string], error)
}

// Queue hands raw webhook deliveries to the external processing pipeline.
type Queue interface {
	PushMessageToQueue(ctx context.Context, l zerolog.Logger, payload string) error
}

// Service chains the detector, flow selector, and reconciler behind the HTTP
// layer. All collaborators are injected; the service holds no connection
// state of its own.
type Service struct {
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	vault   *secrets.Vault

	github              GitHubAPI
	installationClients InstallationClients

	workspaces        WorkspaceStore
	repositories      RepositoryStore
	sourceControlOrgs SourceControlOrgStore
	sessions          SessionStore
	queue             Queue

	appSlug     string
	clientID    string
	callbackURL string
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets the logger for the service.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics instance for the service.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(s *Service) {
		s.metrics = metrics
	}
}

// WithConfig pulls the App slug, OAuth client id, and webhook callback URL
// from the service configuration.
func WithConfig(cfg config.Config) Option {
	return func(s *Service) {
		s.appSlug = cfg.GitHub.AppSlug
		s.clientID = cfg.GitHub.ClientID
		s.callbackURL = cfg.WebhookCallbackURL()
	}
}

// WithVault sets the vault used to seal and open stored secrets.
func WithVault(vault *secrets.Vault) Option {
	return func(s *Service) {
		s.vault = vault
	}
}

// WithGitHub sets the GitHub client.
func WithGitHub(client GitHubAPI) Option {
	return func(s *Service) {
		s.github = client
	}
}

// WithInstallationClients sets the factory for installation-scoped GitHub
// clients.
func WithInstallationClients(factory InstallationClients) Option {
	return func(s *Service) {
		s.installationClients = factory
	}
}

// WithStores sets the persistence collaborators.
func WithStores(
	workspaces WorkspaceStore,
	repositories RepositoryStore,
	sourceControlOrgs SourceControlOrgStore,
	sessions SessionStore,
) Option {
	return func(s *Service) {
		s.workspaces = workspaces
		s.repositories = repositories
		s.sourceControlOrgs = sourceControlOrgs
		s.sessions = sessions
	}
}

// WithQueue sets the delivery queue for the webhook receipt path.
func WithQueue(queue Queue) Option {
	return func(s *Service) {
		s.queue = queue
	}
}

// NewService creates the integration service. The GitHub client, vault, and
// all four stores are required.
func NewService(options ...Option) (*Service, error) {
	s := &Service{
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}

	if s.github == nil {
		return nil, errors.New("github client is required")
	}
	if s.vault == nil {
		return nil, errors.New("secrets vault is required")
	}
	if s.workspaces == nil || s.repositories == nil || s.sourceControlOrgs == nil || s.sessions == nil {
		return nil, errors.New("all stores are required")
	}
	return s, nil
}
