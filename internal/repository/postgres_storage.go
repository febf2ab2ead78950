package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/nexlearn-dashboard/pkg/storage"
)

const (
	createSessionStorageTable = `CREATE TABLE IF NOT EXISTS session_storage (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (namespace, key)
)`
	selectSessionValue = `SELECT value FROM session_storage WHERE namespace = $1 AND key = $2`
	upsertSessionValue = `INSERT INTO session_storage (namespace, key, value, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	deleteSessionValue  = `DELETE FROM session_storage WHERE namespace = $1 AND key = $2`
	deleteStaleSessions = `DELETE FROM session_storage WHERE updated_at < $1`
)

// PostgresStorage keeps visitor namespaces in the session_storage table.
type PostgresStorage struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostgresStorage creates a postgres-backed session storage.
func NewPostgresStorage(db *sqlx.DB) *PostgresStorage {
	return &PostgresStorage{db: db, now: time.Now}
}

// EnsureSchema creates the session_storage table when missing.
func (r *PostgresStorage) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createSessionStorageTable); err != nil {
		return fmt.Errorf("create session_storage: %w", err)
	}
	return nil
}

// Namespace implements storage.Backend.
func (r *PostgresStorage) Namespace(id string) storage.KeyValue {
	return &postgresNamespace{repo: r, id: id}
}

// PurgeOlderThan deletes rows not written within ttl.
func (r *PostgresStorage) PurgeOlderThan(ctx context.Context, ttl time.Duration) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteStaleSessions, r.now().UTC().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("purge session_storage: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge session_storage rows: %w", err)
	}
	return affected, nil
}

type postgresNamespace struct {
	repo *PostgresStorage
	id   string
}

func (n *postgresNamespace) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	if err := n.repo.db.GetContext(ctx, &value, selectSessionValue, n.id, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get session value %s: %w", key, err)
	}
	return value, true, nil
}

func (n *postgresNamespace) Set(ctx context.Context, key, value string) error {
	if _, err := n.repo.db.ExecContext(ctx, upsertSessionValue, n.id, key, value, n.repo.now().UTC()); err != nil {
		return fmt.Errorf("upsert session value %s: %w", key, err)
	}
	return nil
}

func (n *postgresNamespace) Remove(ctx context.Context, key string) error {
	if _, err := n.repo.db.ExecContext(ctx, deleteSessionValue, n.id, key); err != nil {
		return fmt.Errorf("delete session value %s: %w", key, err)
	}
	return nil
}
