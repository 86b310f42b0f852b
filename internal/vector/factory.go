package vector

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Backend names a vector Store implementation.
type Backend string

const (
	// BackendChromem persists chunks with chromem-go. Default.
	BackendChromem Backend = "chromem"
	// BackendSQLite keeps chunks in a SQLite table with brute-force scoring.
	BackendSQLite Backend = "sqlite"
	// BackendMemory is not persisted; state is lost on exit.
	BackendMemory Backend = "memory"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown vector backend")

// Open creates the Store for backend rooted at dir.
// Supported backends: "chromem" (default), "sqlite", "memory".
func Open(backend, dir string, logger *zap.Logger) (Store, error) {
	switch Backend(backend) {
	case BackendChromem, "":
		return NewChromemStore(dir, logger)
	case BackendSQLite:
		return NewSQLiteStore(dir, logger)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %s (supported: chromem, sqlite, memory)", ErrUnknownBackend, backend)
	}
}
