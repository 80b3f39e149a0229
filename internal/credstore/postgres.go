package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nghyane/llm-adapter/internal/auth"
	log "github.com/nghyane/llm-adapter/internal/logging"
)

// Postgres shares credentials between gateway replicas.
type Postgres struct {
	pool  *pgxpool.Pool
	table string
	now   func() time.Time
}

// OpenPostgres connects using dsn and ensures the table exists.
func OpenPostgres(ctx context.Context, dsn, table string) (*Postgres, error) {
	if table == "" {
		table = "assumed_role_credentials"
	}
	if !validIdentifier(table) {
		return nil, fmt.Errorf("credstore: invalid table name %q", table)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("credstore: connect postgres: %w", err)
	}
	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		fingerprint TEXT PRIMARY KEY,
		access_key_id TEXT NOT NULL,
		secret_access_key TEXT NOT NULL,
		session_token TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ
	)`, table)
	if _, err = pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("credstore: create table: %w", err)
	}
	return &Postgres{pool: pool, table: table, now: time.Now}, nil
}

func (p *Postgres) Get(ctx context.Context, key string) (auth.CachedCredential, bool) {
	var (
		cred    auth.CachedCredential
		expires *time.Time
	)
	query := fmt.Sprintf(`SELECT access_key_id, secret_access_key, session_token, expires_at FROM %s WHERE fingerprint = $1`, p.table)
	err := p.pool.QueryRow(ctx, query, key).Scan(&cred.AccessKeyID, &cred.SecretAccessKey, &cred.SessionToken, &expires)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.WithError(err).Warn("credstore: postgres read failed")
		}
		return auth.CachedCredential{}, false
	}
	if expires != nil {
		cred.Expiry = *expires
		if !cred.Expiry.After(p.now()) {
			return auth.CachedCredential{}, false
		}
	}
	return cred, true
}

func (p *Postgres) Put(ctx context.Context, key string, cred auth.CachedCredential) {
	var expires *time.Time
	if !cred.Expiry.IsZero() {
		expires = &cred.Expiry
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (fingerprint, access_key_id, secret_access_key, session_token, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fingerprint) DO UPDATE SET
			access_key_id = EXCLUDED.access_key_id,
			secret_access_key = EXCLUDED.secret_access_key,
			session_token = EXCLUDED.session_token,
			expires_at = EXCLUDED.expires_at`, p.table)
	if _, err := p.pool.Exec(ctx, query, key, cred.AccessKeyID, cred.SecretAccessKey, cred.SessionToken, expires); err != nil {
		log.WithError(err).Warn("credstore: postgres write failed")
	}
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func validIdentifier(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}
