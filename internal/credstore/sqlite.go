package credstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nghyane/llm-adapter/internal/auth"
	log "github.com/nghyane/llm-adapter/internal/logging"
	_ "modernc.org/sqlite"
)

// SQLite persists credentials in a local database file so a restarted
// gateway keeps its assumed-role sessions.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens or creates the database at path. A leading ~ expands to
// the home directory.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	const schema = `
	CREATE TABLE IF NOT EXISTS assumed_role_credentials (
		fingerprint TEXT PRIMARY KEY,
		access_key_id TEXT NOT NULL,
		secret_access_key TEXT NOT NULL,
		session_token TEXT NOT NULL DEFAULT '',
		expires_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_assumed_role_credentials_expires ON assumed_role_credentials(expires_at);
	`
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (auth.CachedCredential, bool) {
	var (
		cred    auth.CachedCredential
		expires int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT access_key_id, secret_access_key, session_token, expires_at FROM assumed_role_credentials WHERE fingerprint = ?`,
		key,
	).Scan(&cred.AccessKeyID, &cred.SecretAccessKey, &cred.SessionToken, &expires)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.WithError(err).Warn("credstore: sqlite read failed")
		}
		return auth.CachedCredential{}, false
	}
	if expires > 0 {
		cred.Expiry = time.Unix(expires, 0)
		if !cred.Expiry.After(s.now()) {
			return auth.CachedCredential{}, false
		}
	}
	return cred, true
}

func (s *SQLite) Put(ctx context.Context, key string, cred auth.CachedCredential) {
	var expires int64
	if !cred.Expiry.IsZero() {
		expires = cred.Expiry.Unix()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assumed_role_credentials (fingerprint, access_key_id, secret_access_key, session_token, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			access_key_id = excluded.access_key_id,
			secret_access_key = excluded.secret_access_key,
			session_token = excluded.session_token,
			expires_at = excluded.expires_at`,
		key, cred.AccessKeyID, cred.SecretAccessKey, cred.SessionToken, expires,
	)
	if err != nil {
		log.WithError(err).Warn("credstore: sqlite write failed")
	}
}

// Purge deletes expired rows and returns how many were removed.
func (s *SQLite) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM assumed_role_credentials WHERE expires_at > 0 AND expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
