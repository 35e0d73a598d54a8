// Package store provides the Postgres persistence collaborators. Stores do
// simple keyed lookups and writes; reconciliation logic stays in the
// integrations package.
package store

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	"github.com/stakwork/hivebridge/config"
	"github.com/stakwork/hivebridge/secrets"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store bundles the Postgres repositories over a shared connection pool.
type Store struct {
	db     *sqlx.DB
	schema string
	logger zerolog.Logger

	Workspaces        *PostgresWorkspacesRepository
	Repositories      *PostgresRepositoriesRepository
	SourceControlOrgs *PostgresSourceControlOrgsRepository
	Sessions          *PostgresSessionsRepository
}

// Option configures the store.
type Option func(*storeOptions)

type storeOptions struct {
	databaseURL string
	schema      string
	logger      zerolog.Logger
	vault       *secrets.Vault
	db          *sqlx.DB
}

// WithConfig pulls the database URL and schema from the service configuration.
func WithConfig(cfg config.Config) Option {
	return func(o *storeOptions) {
		o.databaseURL = cfg.Database.URL
		o.schema = cfg.Database.Schema
	}
}

// WithLogger sets the logger for the store.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithVault sets the vault sessions use to open stored OAuth tokens.
func WithVault(vault *secrets.Vault) Option {
	return func(o *storeOptions) {
		o.vault = vault
	}
}

// WithDB uses an existing connection pool instead of opening one. Used in
// tests; the pool's search_path should match the configured schema.
func WithDB(db *sqlx.DB) Option {
	return func(o *storeOptions) {
		o.db = db
	}
}

// New opens the database connection and wires up the repositories.
func New(options ...Option) (*Store, error) {
	opts := &storeOptions{
		schema: config.DefaultDatabaseSchema,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(opts)
	}

	if opts.vault == nil {
		return nil, errors.New("secrets vault is required")
	}

	db := opts.db
	if db == nil {
		if opts.databaseURL == "" {
			return nil, errors.New("database URL is required")
		}
		var err error
		db, err = sqlx.Connect("postgres", dsnWithSearchPath(opts.databaseURL, opts.schema))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	return &Store{
		db:                db,
		schema:            opts.schema,
		logger:            opts.logger,
		Workspaces:        NewPostgresWorkspacesRepository(db, opts.schema),
		Repositories:      NewPostgresRepositoriesRepository(db, opts.schema),
		SourceControlOrgs: NewPostgresSourceControlOrgsRepository(db, opts.schema),
		Sessions:          NewPostgresSessionsRepository(db, opts.schema, opts.vault),
	}, nil
}

// dsnWithSearchPath pins the connection's search_path to the configured
// schema so the unqualified statements in the embedded migrations land in
// the same schema the repositories query.
func dsnWithSearchPath(databaseURL, schema string) string {
	if schema == "" {
		return databaseURL
	}
	u, err := url.Parse(databaseURL)
	if err != nil || u.Scheme == "" {
		// Key/value DSN form.
		return databaseURL + " search_path=" + schema
	}
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()
	return u.String()
}

// Migrate applies any pending embedded migrations. The schema is created when
// missing; the migrations table lives in the same schema as the tables.
func (s *Store) Migrate() error {
	if s.schema != "" {
		if _, err := s.db.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", s.schema)); err != nil {
			return fmt.Errorf("failed to ensure schema %q: %w", s.schema, err)
		}
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := migratepg.WithInstance(s.db.DB, &migratepg.Config{SchemaName: s.schema})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	s.logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("Database migrations applied")
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
