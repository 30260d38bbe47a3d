package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"

	storeerrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded schema migrations to the database at url.
func Migrate(url string) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// PgStore keeps entries in the kv_entries table of a PostgreSQL database.
type PgStore struct {
	db        *pgxpool.Pool
	namespace string
}

var _ KV = (*PgStore)(nil)

func NewPgStore(dbp *pgxpool.Pool, namespace string) *PgStore {
	return &PgStore{db: dbp, namespace: namespace}
}

const (
	selectEntry = `SELECT value FROM kv_entries WHERE namespace = $1 AND entry_key = $2`
	upsertEntry = `INSERT INTO kv_entries (namespace, entry_key, value, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (namespace, entry_key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	deleteEntry = `DELETE FROM kv_entries WHERE namespace = $1 AND entry_key = $2`
)

func (p *PgStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRow(ctx, selectEntry, p.namespace, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storeerrors.ErrKeyNotFound
		}
		return nil, fmt.Errorf("%w: %w", storeerrors.ErrStorageRead, err)
	}
	return value, nil
}

func (p *PgStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := p.db.Exec(ctx, upsertEntry, p.namespace, key, value); err != nil {
		return fmt.Errorf("%w: %w", storeerrors.ErrStorageWrite, err)
	}
	return nil
}

func (p *PgStore) Remove(ctx context.Context, key string) error {
	if _, err := p.db.Exec(ctx, deleteEntry, p.namespace, key); err != nil {
		return fmt.Errorf("%w: %w", storeerrors.ErrStorageRemove, err)
	}
	return nil
}

func (p *PgStore) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}
