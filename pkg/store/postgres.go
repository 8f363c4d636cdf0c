package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/psantana5/botkeeper/pkg/models"
)

// PostgresStore persists cycles in PostgreSQL, for hosts where the
// history should outlive the machine running the supervisor
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("PostgreSQL DSN is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates tables if they don't exist
func (s *PostgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycles (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		pid INTEGER NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ NOT NULL,
		exit_code INTEGER NOT NULL,
		launch_error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_cycles_started ON cycles(started_at);
	CREATE INDEX IF NOT EXISTS idx_cycles_session ON cycles(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveCycle inserts or updates a cycle record
func (s *PostgresStore) SaveCycle(c *models.Cycle) error {
	_, err := s.db.Exec(`
		INSERT INTO cycles
		(id, session_id, seq, pid, started_at, ended_at, exit_code, launch_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			ended_at = EXCLUDED.ended_at,
			exit_code = EXCLUDED.exit_code,
			launch_error = EXCLUDED.launch_error
	`, c.ID, c.SessionID, c.Seq, c.PID, c.StartedAt, c.EndedAt, c.ExitCode, c.LaunchError)

	return err
}

// ListCycles returns up to limit cycles, newest first
func (s *PostgresStore) ListCycles(limit int) ([]*models.Cycle, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(`
		SELECT id, session_id, seq, pid, started_at, ended_at, exit_code, launch_error
		FROM cycles
		ORDER BY started_at DESC, seq DESC
		LIMIT $1
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
func (s *PostgresStore) CountCycles() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM cycles`).Scan(&count)
	return count, err
}

// PruneOlderThan deletes cycles started before cutoff
func (s *PostgresStore) PruneOlderThan(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM cycles WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	return int(affected), err
}

// Close closes the database
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database
func (s *PostgresStore) HealthCheck() error {
	return s.db.Ping()
}

// Vacuum reclaims space after pruning
func (s *PostgresStore) Vacuum() error {
	_, err := s.db.Exec(`VACUUM cycles`)
	return err
}
