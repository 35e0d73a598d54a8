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

// PostgresSourceControlOrgsRepository reads known GitHub App installations.
// Rows are written at OAuth-callback time by the platform, not here.
type PostgresSourceControlOrgsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for the source_control_orgs table
var sourceControlOrgsColumns = []string{
	"id",
	"workspace_id",
	"github_login",
	"github_installation_id",
	"access_token",
	"refresh_token",
	"created_at",
	"updated_at",
}

type sourceControlOrgRow struct {
	ID                   string        `db:"id"`
	WorkspaceID          string        `db:"workspace_id"`
	GithubLogin          string        `db:"github_login"`
	GithubInstallationID sql.NullInt64 `db:"github_installation_id"`
	AccessToken          []byte        `db:"access_token"`
	RefreshToken         []byte        `db:"refresh_token"`
	CreatedAt            time.Time     `db:"created_at"`
	UpdatedAt            time.Time     `db:"updated_at"`
}

func (row sourceControlOrgRow) model() (models.SourceControlOrg, error) {
	org := models.SourceControlOrg{
		ID:          row.ID,
		WorkspaceID: row.WorkspaceID,
		GithubLogin: row.GithubLogin,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.GithubInstallationID.Valid {
		org.GithubInstallationID = &row.GithubInstallationID.Int64
	}

	var err error
	if org.AccessToken, err = decodeBlob(row.AccessToken); err != nil {
		return models.SourceControlOrg{}, fmt.Errorf("failed to decode access token blob: %w", err)
	}
	if org.RefreshToken, err = decodeBlob(row.RefreshToken); err != nil {
		return models.SourceControlOrg{}, fmt.Errorf("failed to decode refresh token blob: %w", err)
	}
	return org, nil
}

func decodeBlob(raw []byte) (*secrets.EncryptedBlob, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var blob secrets.EncryptedBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return nil, err
	}
	return &blob, nil
}

// NewPostgresSourceControlOrgsRepository creates a source control orgs
// repository.
func NewPostgresSourceControlOrgsRepository(db *sqlx.DB, schema string) *PostgresSourceControlOrgsRepository {
	return &PostgresSourceControlOrgsRepository{db: db, schema: schema}
}

// GetSourceControlOrgByLogin looks an installation up by owner login. The
// match is case sensitive; GitHub logins are stored exactly as GitHub
// reports them.
func (r *PostgresSourceControlOrgsRepository) GetSourceControlOrgByLogin(
	ctx context.Context,
	login string,
) (mo.Option[models.SourceControlOrg], error) {
	columnsStr := strings.Join(sourceControlOrgsColumns, ", ")

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.source_control_orgs
		WHERE github_login = $1`, columnsStr, r.schema)

	var row sourceControlOrgRow
	err := r.db.QueryRowxContext(ctx, query, login).StructScan(&row)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return mo.None[models.SourceControlOrg](), nil
		}
		return mo.None[models.SourceControlOrg](), fmt.Errorf("failed to get source control org by login: %w", err)
	}

	org, err := row.model()
	if err != nil {
		return mo.None[models.SourceControlOrg](), err
	}
	return mo.Some(org), nil
}
