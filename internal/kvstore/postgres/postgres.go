package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/storefront/pkg/database"
	apperrors "github.com/utafrali/storefront/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	selectSQL = `SELECT value FROM storefront_kv WHERE key = $1`
	upsertSQL = `INSERT INTO storefront_kv (key, value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	deleteSQL = `DELETE FROM storefront_kv WHERE key = $1`
)

// Backend stores values in the storefront_kv table.
type Backend struct {
	db database.DBTX
}

// New creates a Postgres backend. Call Migrate once before use.
func New(db database.DBTX) *Backend {
	return &Backend{db: db}
}

// Migrate creates the storefront_kv table if it does not exist.
func Migrate(ctx context.Context, db database.DBTX, logger *slog.Logger) error {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	return database.RunMigrations(ctx, db, sub, logger)
}

func (b *Backend) Get(ctx context.Context, key string) (v string, err error) {
	ctx, end := database.TraceQuery(ctx, "postgresql", "kv.get", selectSQL)
	defer func() { end(err) }()

	if err = b.db.QueryRow(ctx, selectSQL, key).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NotFound("key", key)
		}
		return "", fmt.Errorf("select %s: %w", key, err)
	}
	return v, nil
}

func (b *Backend) Set(ctx context.Context, key, value string) (err error) {
	ctx, end := database.TraceQuery(ctx, "postgresql", "kv.set", upsertSQL)
	defer func() { end(err) }()

	if _, err = b.db.Exec(ctx, upsertSQL, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) (err error) {
	ctx, end := database.TraceQuery(ctx, "postgresql", "kv.delete", deleteSQL)
	defer func() { end(err) }()

	if _, err = b.db.Exec(ctx, deleteSQL, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.db.Ping(ctx)
}
