package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	"github.com/stakwork/hivebridge/models"
	"github.com/stakwork/hivebridge/secrets"
)

// PostgresRepositoriesRepository reads repositories and persists reconciled
// webhook state.
type PostgresRepositoriesRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for the repositories table
var repositoriesColumns = []string{
	"id",
	"workspace_id",
	"repository_url",
	"github_webhook_id",
	"github_webhook_secret",
	"created_at",
	"updated_at",
}

// repositoryRow is the scan target; the encrypted secret arrives as raw JSON.
type repositoryRow struct {
	ID                  string         `db:"id"`
	WorkspaceID         string         `db:"workspace_id"`
	RepositoryURL       string         `db:"repository_url"`
	GithubWebhookID     sql.NullString `db:"github_webhook_id"`
	GithubWebhookSecret []byte         `db:"github_webhook_secret"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (row repositoryRow) model() (models.Repository, error) {
	repo := models.Repository{
		ID:            row.ID,
		WorkspaceID:   row.WorkspaceID,
		RepositoryURL: row.RepositoryURL,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.GithubWebhookID.Valid {
		repo.GithubWebhookID = &row.GithubWebhookID.String
	}
	if len(row.GithubWebhookSecret) > 0 {
		var blob secrets.EncryptedBlob
		if err := json.Unmarshal(row.GithubWebhookSecret, &blob); err != nil {
			return models.Repository{}, fmt.Errorf("failed to decode webhook secret blob: %w", err)
		}
		repo.GithubWebhookSecret = &blob
	}
	return repo, nil
}

// NewPostgresRepositoriesRepository creates a repositories repository.
func NewPostgresRepositoriesRepository(db *sqlx.DB, schema string) *PostgresRepositoriesRepository {
	return &PostgresRepositoriesRepository{db: db, schema: schema}
}

// CreateRepository links a repository to a workspace.
func (r *PostgresRepositoriesRepository) CreateRepository(ctx context.Context, repo models.Repository) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.repositories (id, workspace_id, repository_url, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())`, r.schema)

	if _, err := r.db.ExecContext(ctx, query, repo.ID, repo.WorkspaceID, repo.RepositoryURL); err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}
	return nil
}

// GetRepositoryByURL looks a repository up by workspace and URL.
func (r *PostgresRepositoriesRepository) GetRepositoryByURL(
	ctx context.Context,
	workspaceID, repositoryURL string,
) (mo.Option[models.Repository], error) {
	columnsStr := strings.Join(repositoriesColumns, ", ")

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.repositories
		WHERE workspace_id = $1 AND repository_url = $2`, columnsStr, r.schema)

	var row repositoryRow
	err := r.db.QueryRowxContext(ctx, query, workspaceID, repositoryURL).StructScan(&row)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return mo.None[models.Repository](), nil
		}
		return mo.None[models.Repository](), fmt.Errorf("failed to get repository by URL: %w", err)
	}

	repo, err := row.model()
	if err != nil {
		return mo.None[models.Repository](), err
	}
	return mo.Some(repo), nil
}

// UpdateRepositoryWebhook persists the reconciled webhook id and encrypted
// secret in one statement.
func (r *PostgresRepositoriesRepository) UpdateRepositoryWebhook(
	ctx context.Context,
	repositoryID, webhookID string,
	secret secrets.EncryptedBlob,
) error {
	blob, err := json.Marshal(secret)
	if err != nil {
		return fmt.Errorf("failed to encode webhook secret blob: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s.repositories
		SET github_webhook_id = $1, github_webhook_secret = $2, updated_at = NOW()
		WHERE id = $3`, r.schema)

	result, err := r.db.ExecContext(ctx, query, webhookID, blob, repositoryID)
	if err != nil {
		return fmt.Errorf("failed to update repository webhook: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("repository not found")
	}
	return nil
}
