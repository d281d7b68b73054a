// Package sqlite provides a SQLite-backed auth document store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/emberhome/ember/internal/auth/storage"
	"github.com/emberhome/ember/internal/auth/storage/sqlite/migrations"
	"github.com/emberhome/ember/internal/platform/storage/sqlitemigrate"
	_ "modernc.org/sqlite"
)

// Store persists the flattened auth document in SQLite. Save replaces the
// whole document in one transaction, matching the store's whole-graph
// serialization model.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite auth store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Load reads the persisted auth document. A database that has never been
// saved to yields storage.ErrNotFound.
func (s *Store) Load(ctx context.Context) (*storage.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	doc := &storage.Document{}
	err := s.sqlDB.QueryRowContext(ctx, `SELECT version FROM auth_meta WHERE id = 1`).Scan(&doc.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load auth meta: %w", err)
	}

	if doc.Users, err = s.loadUsers(ctx); err != nil {
		return nil, err
	}
	if doc.Credentials, err = s.loadCredentials(ctx); err != nil {
		return nil, err
	}
	if doc.RefreshTokens, err = s.loadRefreshTokens(ctx); err != nil {
		return nil, err
	}
	if doc.AccessTokens, err = s.loadAccessTokens(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) loadUsers(ctx context.Context) ([]storage.UserRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, name, is_owner, is_active, system_generated
		   FROM users
		  ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()

	records := []storage.UserRecord{}
	for rows.Next() {
		var record storage.UserRecord
		if err := rows.Scan(&record.ID, &record.Name, &record.IsOwner, &record.IsActive, &record.SystemGenerated); err != nil {
			return nil, fmt.Errorf("load users: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return records, nil
}

func (s *Store) loadCredentials(ctx context.Context) ([]storage.CredentialsRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, user_id, auth_provider_type, auth_provider_id, data
		   FROM credentials
		  ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	defer rows.Close()

	records := []storage.CredentialsRecord{}
	for rows.Next() {
		var record storage.CredentialsRecord
		var data string
		if err := rows.Scan(&record.ID, &record.UserID, &record.AuthProviderType, &record.AuthProviderID, &data); err != nil {
			return nil, fmt.Errorf("load credentials: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &record.Data); err != nil {
			return nil, fmt.Errorf("decode credentials %s data: %w", record.ID, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return records, nil
}

func (s *Store) loadRefreshTokens(ctx context.Context) ([]storage.RefreshTokenRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, user_id, client_id, created_at, access_token_expiration, token
		   FROM refresh_tokens
		  ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load refresh tokens: %w", err)
	}
	defer rows.Close()

	records := []storage.RefreshTokenRecord{}
	for rows.Next() {
		var record storage.RefreshTokenRecord
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.UserID, &record.ClientID, &createdAt, &record.AccessTokenExpiration, &record.Token); err != nil {
			return nil, fmt.Errorf("load refresh tokens: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load refresh tokens: %w", err)
	}
	return records, nil
}

func (s *Store) loadAccessTokens(ctx context.Context) ([]storage.AccessTokenRecord, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, refresh_token_id, created_at, token
		   FROM access_tokens
		  ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load access tokens: %w", err)
	}
	defer rows.Close()

	records := []storage.AccessTokenRecord{}
	for rows.Next() {
		var record storage.AccessTokenRecord
		var createdAt int64
		if err := rows.Scan(&record.ID, &record.RefreshTokenID, &createdAt, &record.Token); err != nil {
			return nil, fmt.Errorf("load access tokens: %w", err)
		}
		record.CreatedAt = fromMillis(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load access tokens: %w", err)
	}
	return records, nil
}

// Save replaces the persisted document in a single transaction.
func (s *Store) Save(ctx context.Context, doc *storage.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if doc == nil {
		return fmt.Errorf("document is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"access_tokens", "refresh_tokens", "credentials", "users"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, record := range doc.Users {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, name, is_owner, is_active, system_generated, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			record.ID, record.Name, record.IsOwner, record.IsActive, record.SystemGenerated, i,
		); err != nil {
			return fmt.Errorf("save user %s: %w", record.ID, err)
		}
	}

	for i, record := range doc.Credentials {
		data, err := json.Marshal(record.Data)
		if err != nil {
			return fmt.Errorf("encode credentials %s data: %w", record.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO credentials (id, user_id, auth_provider_type, auth_provider_id, data, position)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			record.ID, record.UserID, record.AuthProviderType, record.AuthProviderID, string(data), i,
		); err != nil {
			return fmt.Errorf("save credentials %s: %w", record.ID, err)
		}
	}

	for i, record := range doc.RefreshTokens {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO refresh_tokens (id, user_id, client_id, created_at, access_token_expiration, token, position)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.ID, record.UserID, record.ClientID, toMillis(record.CreatedAt), record.AccessTokenExpiration, record.Token, i,
		); err != nil {
			return fmt.Errorf("save refresh token %s: %w", record.ID, err)
		}
	}

	for i, record := range doc.AccessTokens {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO access_tokens (id, refresh_token_id, created_at, token, position)
			 VALUES (?, ?, ?, ?, ?)`,
			record.ID, record.RefreshTokenID, toMillis(record.CreatedAt), record.Token, i,
		); err != nil {
			return fmt.Errorf("save access token %s: %w", record.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO auth_meta (id, version, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET version = excluded.version, saved_at = excluded.saved_at`,
		doc.Version, time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("save auth meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save transaction: %w", err)
	}
	return nil
}

var _ storage.Backend = (*Store)(nil)
