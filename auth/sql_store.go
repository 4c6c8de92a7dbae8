package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	// Register Postgres SQL driver.
	_ "github.com/lib/pq"
	// Register SQLite SQL driver.
	_ "modernc.org/sqlite"
)

type sqlDialect string

const (
	dialectSQLite   sqlDialect = "sqlite"
	dialectPostgres sqlDialect = "postgres"
)

// SQLStore persists users and API keys in SQL backends (SQLite or
// Postgres), mirroring internal/admin's SQLStore dialect-bind pattern but
// over hashed secrets instead of plaintext keys.
type SQLStore struct {
	db      *sql.DB
	dialect sqlDialect
}

// NewSQLiteStore creates a SQLite-backed auth store.
func NewSQLiteStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "ferrogw-auth.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite auth store: %w", err)
	}
	store := &SQLStore{db: db, dialect: dialectSQLite}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStore creates a Postgres-backed auth store.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres auth store: %w", err)
	}
	store := &SQLStore{db: db, dialect: dialectPostgres}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLStore) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping %s auth store: %w", s.dialect, err)
	}

	var ddl string
	switch s.dialect {
	case dialectPostgres:
		ddl = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	extra_permissions TEXT NOT NULL,
	verified BOOLEAN NOT NULL,
	failed_attempts INTEGER NOT NULL DEFAULT 0,
	locked_until TIMESTAMPTZ NULL,
	last_failure_reset TIMESTAMPTZ NULL
);
CREATE TABLE IF NOT EXISTS api_keys (
	prefix TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	secret_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	permissions TEXT NOT NULL,
	tier TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NULL,
	revoked BOOLEAN NOT NULL DEFAULT FALSE,
	revoked_at TIMESTAMPTZ NULL
);
CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id);`
	default:
		ddl = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT UNIQUE NOT NULL,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	extra_permissions TEXT NOT NULL,
	verified BOOLEAN NOT NULL,
	failed_attempts INTEGER NOT NULL DEFAULT 0,
	locked_until DATETIME NULL,
	last_failure_reset DATETIME NULL
);
CREATE TABLE IF NOT EXISTS api_keys (
	prefix TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	secret_hash TEXT NOT NULL,
	role TEXT NOT NULL,
	permissions TEXT NOT NULL,
	tier TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	expires_at DATETIME NULL,
	revoked BOOLEAN NOT NULL DEFAULT 0,
	revoked_at DATETIME NULL
);
CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id);`
	}

	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize %s auth schema: %w", s.dialect, err)
	}
	return nil
}

func (s *SQLStore) bind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	argNum := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteString(fmt.Sprintf("$%d", argNum))
			argNum++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *SQLStore) GetUserByID(ctx context.Context, id string) (User, error) {
	q := s.bind(`SELECT id, username, password_hash, role, extra_permissions, verified, failed_attempts, locked_until, last_failure_reset FROM users WHERE id = ?`)
	return s.scanUser(s.db.QueryRowContext(ctx, q, id))
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	q := s.bind(`SELECT id, username, password_hash, role, extra_permissions, verified, failed_attempts, locked_until, last_failure_reset FROM users WHERE username = ?`)
	return s.scanUser(s.db.QueryRowContext(ctx, q, username))
}

func (s *SQLStore) scanUser(row *sql.Row) (User, error) {
	var (
		u          User
		extraRaw   string
		locked     sql.NullTime
		lastReset  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &extraRaw, &u.Verified, &u.FailedAttempts, &locked, &lastReset)
	if err == sql.ErrNoRows {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	if extraRaw != "" {
		if err := json.Unmarshal([]byte(extraRaw), &u.ExtraPermissions); err != nil {
			return User{}, fmt.Errorf("decode extra permissions: %w", err)
		}
	}
	if locked.Valid {
		u.LockedUntil = locked.Time
	}
	if lastReset.Valid {
		u.LastFailureReset = lastReset.Time
	}
	return u, nil
}

func (s *SQLStore) PutUser(ctx context.Context, u User) error {
	extraJSON, err := json.Marshal(u.ExtraPermissions)
	if err != nil {
		return fmt.Errorf("encode extra permissions: %w", err)
	}
	var lockedUntil, lastReset interface{}
	if !u.LockedUntil.IsZero() {
		lockedUntil = u.LockedUntil
	}
	if !u.LastFailureReset.IsZero() {
		lastReset = u.LastFailureReset
	}

	q := s.bind(`
INSERT INTO users(id, username, password_hash, role, extra_permissions, verified, failed_attempts, locked_until, last_failure_reset)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	username = excluded.username,
	password_hash = excluded.password_hash,
	role = excluded.role,
	extra_permissions = excluded.extra_permissions,
	verified = excluded.verified,
	failed_attempts = excluded.failed_attempts,
	locked_until = excluded.locked_until,
	last_failure_reset = excluded.last_failure_reset`)

	_, err = s.db.ExecContext(ctx, q, u.ID, u.Username, u.PasswordHash, string(u.Role), string(extraJSON), u.Verified, u.FailedAttempts, lockedUntil, lastReset)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *SQLStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) (APIKey, error) {
	q := s.bind(`SELECT prefix, user_id, secret_hash, role, permissions, tier, created_at, expires_at, revoked, revoked_at FROM api_keys WHERE prefix = ?`)
	row := s.db.QueryRowContext(ctx, q, prefix)
	return scanAPIKeyRow(row)
}

func scanAPIKeyRow(row *sql.Row) (APIKey, error) {
	var (
		k         APIKey
		permsRaw  string
		expires   sql.NullTime
		revokedAt sql.NullTime
	)
	err := row.Scan(&k.Prefix, &k.UserID, &k.SecretHash, &k.Role, &permsRaw, &k.Tier, &k.CreatedAt, &expires, &k.Revoked, &revokedAt)
	if err == sql.ErrNoRows {
		return APIKey{}, ErrKeyNotFound
	}
	if err != nil {
		return APIKey{}, fmt.Errorf("scan api key: %w", err)
	}
	k.ID = k.Prefix
	if permsRaw != "" {
		if err := json.Unmarshal([]byte(permsRaw), &k.Permissions); err != nil {
			return APIKey{}, fmt.Errorf("decode permissions: %w", err)
		}
	}
	if expires.Valid {
		k.ExpiresAt = expires.Time
	}
	if revokedAt.Valid {
		k.RevokedAt = revokedAt.Time
	}
	return k, nil
}

func (s *SQLStore) PutAPIKey(ctx context.Context, k APIKey) error {
	permsJSON, err := json.Marshal(k.Permissions)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}
	var expiresAt interface{}
	if !k.ExpiresAt.IsZero() {
		expiresAt = k.ExpiresAt
	}

	q := s.bind(`
INSERT INTO api_keys(prefix, user_id, secret_hash, role, permissions, tier, created_at, expires_at, revoked, revoked_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`)
	_, err = s.db.ExecContext(ctx, q, k.Prefix, k.UserID, k.SecretHash, string(k.Role), string(permsJSON), k.Tier, k.CreatedAt, expiresAt, k.Revoked)
	if err != nil {
		return fmt.Errorf("insert api key: %w", err)
	}
	return nil
}

func (s *SQLStore) RevokeAPIKey(ctx context.Context, prefix string) error {
	q := s.bind(`UPDATE api_keys SET revoked = ?, revoked_at = ? WHERE prefix = ?`)
	res, err := s.db.ExecContext(ctx, q, true, time.Now(), prefix)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (s *SQLStore) ListAPIKeysByUser(ctx context.Context, userID string) ([]APIKey, error) {
	q := s.bind(`SELECT prefix, user_id, secret_hash, role, permissions, tier, created_at, expires_at, revoked, revoked_at FROM api_keys WHERE user_id = ?`)
	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []APIKey
	for rows.Next() {
		var (
			k         APIKey
			permsRaw  string
			expires   sql.NullTime
			revokedAt sql.NullTime
		)
		if err := rows.Scan(&k.Prefix, &k.UserID, &k.SecretHash, &k.Role, &permsRaw, &k.Tier, &k.CreatedAt, &expires, &k.Revoked, &revokedAt); err != nil {
			return nil, fmt.Errorf("scan api key row: %w", err)
		}
		k.ID = k.Prefix
		if permsRaw != "" {
			if err := json.Unmarshal([]byte(permsRaw), &k.Permissions); err != nil {
				return nil, fmt.Errorf("decode permissions: %w", err)
			}
		}
		if expires.Valid {
			k.ExpiresAt = expires.Time
		}
		if revokedAt.Valid {
			k.RevokedAt = revokedAt.Time
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
