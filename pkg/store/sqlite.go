package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/psantana5/botkeeper/pkg/models"
)

// SQLiteStore persists cycles in a local SQLite file
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// WAL plus a generous busy timeout: the daemon writes while the API reads
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL&_cache_size=-8000&_txlock=immediate", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to avoid SQLITE_BUSY
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the database schema
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycles (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		ended_at DATETIME NOT NULL,
		exit_code INTEGER NOT NULL,
		launch_error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);
	CREATE INDEX IF NOT EXISTS idx_cycles_session ON cycles(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveCycle inserts or replaces a cycle record
func (s *SQLiteStore) SaveCycle(c *models.Cycle) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO cycles
		(id, session_id, seq, pid, started_at, ended_at, exit_code, launch_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.SessionID, c.Seq, c.PID, c.StartedAt, c.EndedAt, c.ExitCode, c.LaunchError)

	return err
}

// ListCycles returns up to limit cycles, newest first
func (s *SQLiteStore) ListCycles(limit int) ([]*models.Cycle, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, session_id, seq, pid, started_at, ended_at, exit_code, launch_error
		FROM cycles
		ORDER BY started_at DESC, seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []*models.Cycle
	for rows.Next() {
		var c models.Cycle
		var launchError sql.NullString
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Seq, &c.PID,
			&c.StartedAt, &c.EndedAt, &c.ExitCode, &launchError); err != nil {
			return nil, err
		}
		c.LaunchError = launchError.String
		cycles = append(cycles, &c)
	}

	return cycles, rows.Err()
}

// CountCycles returns the number of stored cycles
func (s *SQLiteStore) CountCycles() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cycles`).Scan(&count)
	return count, err
}

// PruneOlderThan deletes cycles started before cutoff
func (s *SQLiteStore) PruneOlderThan(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM cycles WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database
func (s *SQLiteStore) HealthCheck() error {
	return s.db.Ping()
}

// Vacuum reclaims space after pruning
func (s *SQLiteStore) Vacuum() error {
	_, err := s.db.Exec(`VACUUM`)
	return err
}
