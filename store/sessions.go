package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	"github.com/stakwork/hivebridge/secrets"
)

// fieldGithubToken is the logical field name user OAuth tokens are sealed
// under at OAuth-callback time.
const fieldGithubToken = "githubToken"

// PostgresSessionsRepository manages the per-user session slot: the latest
// install state and the user's encrypted GitHub OAuth token.
type PostgresSessionsRepository struct {
	db     *sqlx.DB
	schema string
	vault  *secrets.Vault
}

// NewPostgresSessionsRepository creates a sessions repository.
func NewPostgresSessionsRepository(db *sqlx.DB, schema string, vault *secrets.Vault) *PostgresSessionsRepository {
	return &PostgresSessionsRepository{db: db, schema: schema, vault: vault}
}

// PutInstallState overwrites the user's install state slot. Latest wins; any
// previously issued state stops validating.
func (r *PostgresSessionsRepository) PutInstallState(ctx context.Context, userID, state string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.sessions (user_id, install_state, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET install_state = EXCLUDED.install_state, updated_at = NOW()`, r.schema)

	if _, err := r.db.ExecContext(ctx, query, userID, state); err != nil {
		return fmt.Errorf("failed to put install state: %w", err)
	}
	return nil
}

// GetInstallState returns the user's current install state, if any.
func (r *PostgresSessionsRepository) GetInstallState(ctx context.Context, userID string) (mo.Option[string], error) {
	query := fmt.Sprintf(`
		SELECT install_state
		FROM %s.sessions
		WHERE user_id = $1`, r.schema)

	var state *string
	err := r.db.QueryRowxContext(ctx, query, userID).Scan(&state)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return mo.None[string](), nil
		}
		return mo.None[string](), fmt.Errorf("failed to get install state: %w", err)
	}
	if state == nil {
		return mo.None[string](), nil
	}
	return mo.Some(*state), nil
}

// GetUserAccessToken returns the user's GitHub OAuth token in plaintext, or
// none when no token is stored.
func (r *PostgresSessionsRepository) GetUserAccessToken(ctx context.Context, userID string) (mo.Option[string], error) {
	query := fmt.Sprintf(`
		SELECT github_token
		FROM %s.sessions
		WHERE user_id = $1`, r.schema)

	var raw []byte
	err := r.db.QueryRowxContext(ctx, query, userID).Scan(&raw)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return mo.None[string](), nil
		}
		return mo.None[string](), fmt.Errorf("failed to get user token: %w", err)
	}

	blob, err := decodeBlob(raw)
	if err != nil {
		return mo.None[string](), fmt.Errorf("failed to decode user token blob: %w", err)
	}
	if blob == nil {
		return mo.None[string](), nil
	}

	token, err := r.vault.DecryptField(fieldGithubToken, *blob)
	if err != nil {
		return mo.None[string](), fmt.Errorf("failed to decrypt user token: %w", err)
	}
	return mo.Some(token), nil
}

// PutUserAccessToken seals and stores the user's GitHub OAuth token.
func (r *PostgresSessionsRepository) PutUserAccessToken(ctx context.Context, userID, token string) error {
	blob, err := r.vault.EncryptField(fieldGithubToken, token)
	if err != nil {
		return fmt.Errorf("failed to encrypt user token: %w", err)
	}
	value, err := blob.Value()
	if err != nil {
		return fmt.Errorf("failed to encode user token blob: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.sessions (user_id, github_token, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET github_token = EXCLUDED.github_token, updated_at = NOW()`, r.schema)

	if _, err := r.db.ExecContext(ctx, query, userID, value); err != nil {
		return fmt.Errorf("failed to put user token: %w", err)
	}
	return nil
}
