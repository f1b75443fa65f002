// Package sqlkv implements kv.Store on a single SQL table, for SQLite
// (modernc.org/sqlite) and PostgreSQL (lib/pq).
package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"leadcapture/internal/kv"
)

type dialect struct {
	name      string
	schema    string
	get       string
	getLocked string
	lockKey   string
	upsert    string
	insertNX  string
	delete    string
	purge     string
}

var sqliteDialect = dialect{
	name: "sqlite",
	schema: `CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER
	)`,
	get:       `SELECT value, expires_at FROM kv_entries WHERE key = ?`,
	getLocked: `SELECT value, expires_at FROM kv_entries WHERE key = ?`,
	upsert: `INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
	insertNX: `INSERT INTO kv_entries (key, value, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO NOTHING`,
	delete: `DELETE FROM kv_entries WHERE key = ?`,
	purge:  `DELETE FROM kv_entries WHERE key = ? AND expires_at IS NOT NULL AND expires_at <= ?`,
}

var postgresDialect = dialect{
	name: "postgres",
	schema: `CREATE TABLE IF NOT EXISTS kv_entries (
		key TEXT PRIMARY KEY,
		value BYTEA NOT NULL,
		expires_at BIGINT
	)`,
	get:       `SELECT value, expires_at FROM kv_entries WHERE key = $1`,
	getLocked: `SELECT value, expires_at FROM kv_entries WHERE key = $1 FOR UPDATE`,
	// FOR UPDATE locks nothing while the key is absent; the advisory lock
	// also serialises first writes.
	lockKey: `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`,
	upsert: `INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
	insertNX: `INSERT INTO kv_entries (key, value, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING`,
	delete: `DELETE FROM kv_entries WHERE key = $1`,
	purge:  `DELETE FROM kv_entries WHERE key = $1 AND expires_at IS NOT NULL AND expires_at <= $2`,
}

// Store persists entries in the kv_entries table. Expiry is stored as unix
// milliseconds; NULL means no expiry.
type Store struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// OpenSQLite opens (and migrates) a SQLite database file. Writes are
// serialised through a single connection.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newStore(ctx, db, sqliteDialect)
}

// OpenPostgres connects to PostgreSQL and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return newStore(ctx, db, postgresDialect)
}

func newStore(ctx context.Context, db *sql.DB, d dialect) (*Store, error) {
	s := &Store{db: db, dialect: d, now: time.Now}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the kv_entries table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("migrate %s kv schema: %w", s.dialect.name, err)
	}
	return nil
}

// Health pings the database.
func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) expiry(ttl time.Duration) sql.NullInt64 {
	if ttl <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: s.now().Add(ttl).UnixMilli(), Valid: true}
}

func (s *Store) live(expiresAt sql.NullInt64) bool {
	return !expiresAt.Valid || s.now().UnixMilli() < expiresAt.Int64
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) read(ctx context.Context, q queryer, query, key string) ([]byte, sql.NullInt64, bool, error) {
	var value []byte
	var expiresAt sql.NullInt64
	err := q.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sql.NullInt64{}, false, nil
	}
	if err != nil {
		return nil, sql.NullInt64{}, false, fmt.Errorf("select %s: %w", key, err)
	}
	if !s.live(expiresAt) {
		return nil, sql.NullInt64{}, false, nil
	}
	return value, expiresAt, true, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, _, found, err := s.read(ctx, s.db, s.dialect.get, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, kv.ErrNotFound
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.upsert, key, value, s.expiry(ttl)); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var inserted bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.dialect.purge, key, s.now().UnixMilli()); err != nil {
			return fmt.Errorf("purge %s: %w", key, err)
		}
		res, err := tx.ExecContext(ctx, s.dialect.insertNX, key, value, s.expiry(ttl))
		if err != nil {
			return fmt.Errorf("insert %s: %w", key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n == 1
		return nil
	})
	return inserted, err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.delete, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if s.dialect.lockKey != "" {
			if _, err := tx.ExecContext(ctx, s.dialect.lockKey, key); err != nil {
				return fmt.Errorf("lock %s: %w", key, err)
			}
		}
		current, expiresAt, found, err := s.read(ctx, tx, s.dialect.getLocked, key)
		if err != nil {
			return err
		}
		next, err := fn(current, found)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.dialect.upsert, key, next, expiresAt); err != nil {
			return fmt.Errorf("upsert %s: %w", key, err)
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
