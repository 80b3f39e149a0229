package credstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nghyane/llm-adapter/internal/auth"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Store is a credential cache that may hold resources.
type Store interface {
	auth.CredentialCache
	io.Closer
}

type memoryStore struct{ *Memory }

func (memoryStore) Close() error { return nil }

// Open returns the backend named by kind. dsn is a file path for sqlite and a
// connection string for postgres.
func Open(ctx context.Context, kind, dsn string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", BackendMemory:
		return memoryStore{NewMemory()}, nil
	case BackendSQLite:
		return OpenSQLite(dsn)
	case BackendPostgres, "postgresql", "pg":
		return OpenPostgres(ctx, dsn, "")
	default:
		return nil, fmt.Errorf("credstore: unknown backend %q", kind)
	}
}
