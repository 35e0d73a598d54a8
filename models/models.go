// Package models defines the persistence-backed entities shared across
// hivebridge. Entities are read and written through the store package; no
// reconciliation logic lives here.
package models

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stakwork/hivebridge/secrets"
)

// NewID returns a fresh ULID for entity primary keys.
func NewID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// Workspace is the owning scope for repositories.
type Workspace struct {
	ID        string    `db:"id" json:"id"`
	Slug      string    `db:"slug" json:"slug"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Repository is a workspace-owned GitHub repository. The webhook fields are
// mutated only by the webhook reconciler; a repository has at most one
// webhook id at a time.
type Repository struct {
	ID                  string                 `db:"id" json:"id"`
	WorkspaceID         string                 `db:"workspace_id" json:"workspaceId"`
	RepositoryURL       string                 `db:"repository_url" json:"repositoryUrl"`
	GithubWebhookID     *string                `db:"github_webhook_id" json:"githubWebhookId"`
	GithubWebhookSecret *secrets.EncryptedBlob `db:"github_webhook_secret" json:"-"`
	CreatedAt           time.Time              `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time              `db:"updated_at" json:"updatedAt"`
}

// SourceControlOrg records a known GitHub App installation for an owner
// login. It is created at OAuth-callback time (outside this service) or
// pre-seeded; hivebridge only reads it.
type SourceControlOrg struct {
	ID                   string                 `db:"id" json:"id"`
	WorkspaceID          string                 `db:"workspace_id" json:"workspaceId"`
	GithubLogin          string                 `db:"github_login" json:"githubLogin"`
	GithubInstallationID *int64                 `db:"github_installation_id" json:"githubInstallationId"`
	AccessToken          *secrets.EncryptedBlob `db:"access_token" json:"-"`
	RefreshToken         *secrets.EncryptedBlob `db:"refresh_token" json:"-"`
	CreatedAt            time.Time              `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time              `db:"updated_at" json:"updatedAt"`
}

// Session is the per-user slot for short-lived install state and the user's
// GitHub OAuth token. InstallState is overwritten on every install-intent
// request; only the latest issued value validates a later callback.
type Session struct {
	UserID       string                 `db:"user_id" json:"userId"`
	InstallState *string                `db:"install_state" json:"-"`
	GithubToken  *secrets.EncryptedBlob `db:"github_token" json:"-"`
	CreatedAt    time.Time              `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time              `db:"updated_at" json:"updatedAt"`
}
