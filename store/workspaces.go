package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	"github.com/stakwork/hivebridge/models"
)

// PostgresWorkspacesRepository reads and writes workspaces.
type PostgresWorkspacesRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for the workspaces table
var workspacesColumns = []string{
	"id",
	"slug",
	"name",
	"created_at",
	"updated_at",
}

// NewPostgresWorkspacesRepository creates a workspaces repository.
func NewPostgresWorkspacesRepository(db *sqlx.DB, schema string) *PostgresWorkspacesRepository {
	return &PostgresWorkspacesRepository{db: db, schema: schema}
}

// CreateWorkspace inserts a new workspace.
func (r *PostgresWorkspacesRepository) CreateWorkspace(ctx context.Context, workspace models.Workspace) error {
	columnsStr := strings.Join(workspacesColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.workspaces (%s)
		VALUES ($1, $2, $3, NOW(), NOW())`, r.schema, columnsStr)

	if _, err := r.db.ExecContext(ctx, query, workspace.ID, workspace.Slug, workspace.Name); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

// GetWorkspaceByID looks a workspace up by its primary key.
func (r *PostgresWorkspacesRepository) GetWorkspaceByID(ctx context.Context, id string) (mo.Option[models.Workspace], error) {
	return r.getWorkspace(ctx, "id", id)
}

// GetWorkspaceBySlug looks a workspace up by its slug.
func (r *PostgresWorkspacesRepository) GetWorkspaceBySlug(ctx context.Context, slug string) (mo.Option[models.Workspace], error) {
	return r.getWorkspace(ctx, "slug", slug)
}

func (r *PostgresWorkspacesRepository) getWorkspace(ctx context.Context, column, value string) (mo.Option[models.Workspace], error) {
	columnsStr := strings.Join(workspacesColumns, ", ")

	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.workspaces
		WHERE %s = $1`, columnsStr, r.schema, column)

	var workspace models.Workspace
	err := r.db.QueryRowxContext(ctx, query, value).StructScan(&workspace)
	if err != nil {
		if strings.Contains(err.Error(), "no rows") {
			return mo.None[models.Workspace](), nil
		}
		return mo.None[models.Workspace](), fmt.Errorf("failed to get workspace by %s: %w", column, err)
	}

	return mo.Some(workspace), nil
}
