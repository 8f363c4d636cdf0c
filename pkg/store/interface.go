package store

import (
	"time"

	"github.com/psantana5/botkeeper/pkg/models"
)

// Store persists finished supervision cycles.
// Memory, SQLite, and PostgreSQL backends implement this interface.
type Store interface {
	SaveCycle(c *models.Cycle) error
	// ListCycles returns up to limit cycles, newest first
	ListCycles(limit int) ([]*models.Cycle, error)
	CountCycles() (int, error)
	// PruneOlderThan deletes cycles that started before cutoff and
	// reports how many were removed
	PruneOlderThan(cutoff time.Time) (int, error)

	// Lifecycle
	Close() error
	HealthCheck() error
	Vacuum() error
}

// Config holds store configuration
type Config struct {
	Backend string // "memory", "sqlite" or "postgres"
	Path    string // SQLite file
	DSN     string // PostgreSQL connection string
	Keep    int    // memory ring size
}

// NewStore creates a store based on configuration
func NewStore(config Config) (Store, error) {
	switch config.Backend {
	case "postgres", "postgresql":
		return NewPostgresStore(config.DSN)
	case "sqlite":
		path := config.Path
		if path == "" {
			path = "history.db"
		}
		return NewSQLiteStore(path)
	case "memory", "":
		return NewMemoryStore(config.Keep), nil
	default:
		return nil, ErrUnsupportedBackend
	}
}

var (
	ErrUnsupportedBackend = NewError("unsupported history backend")
)

// NewError creates a new error with message
func NewError(message string) error {
	return &storeError{message: message}
}

type storeError struct {
	message string
}

func (e *storeError) Error() string {
	return e.message
}
