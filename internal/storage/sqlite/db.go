// Package sqlite is the SQLite persistence layer: trips with their logpages
// and legs, pending roster imports, and the GPS track point buffer.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/skyops/propilot/pkg/logger"
	_ "modernc.org/sqlite"
)

// Store owns the database connection shared by the per-concern storages
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

// Open opens (or creates) the database file and initializes the schema
func Open(dbPath string, log *logger.Logger) (*Store, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Set pragmas for better performance and concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA cache_size=10000"); err != nil {
		return nil, fmt.Errorf("failed to set cache size: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		logger: storageLogger,
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB returns the underlying database connection
func (s *Store) DB() *sql.DB {
	return s.db
}

// Backup writes a consistent copy of the database into dir, named by
// timestamp. Used by the backup-on-shutdown hook.
func (s *Store) Backup(dir string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("propilot-%s.db", time.Now().UTC().Format("20060102-150405")))
	if _, err := s.db.Exec(`VACUUM INTO ?`, path); err != nil {
		return "", fmt.Errorf("failed to back up database: %w", err)
	}
	s.logger.Info("Database backed up", logger.String("path", path))
	return path, nil
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS trips (
			id TEXT PRIMARY KEY,
			number TEXT NOT NULL,
			aircraft TEXT,
			date TIMESTAMP NOT NULL,
			crew TEXT,              -- JSON array of crew assignments
			status TEXT NOT NULL,
			duty_on TIMESTAMP,
			duty_off TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create trips table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS logpages (
			id TEXT PRIMARY KEY,
			trip_id TEXT NOT NULL,
			number INTEGER NOT NULL,
			seq INTEGER NOT NULL,   -- position within the trip
			FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create logpages table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS legs (
			id TEXT PRIMARY KEY,
			logpage_id TEXT NOT NULL,
			trip_id TEXT NOT NULL,
			seq INTEGER NOT NULL,   -- position within the logpage
			flight_number TEXT,
			departure TEXT NOT NULL,
			arrival TEXT NOT NULL,
			scheduled_out TIMESTAMP,
			scheduled_in TIMESTAMP,
			out_time TIMESTAMP,
			off_time TIMESTAMP,
			on_time TIMESTAMP,
			in_time TIMESTAMP,
			status TEXT NOT NULL,
			FOREIGN KEY (logpage_id) REFERENCES logpages(id) ON DELETE CASCADE,
			FOREIGN KEY (trip_id) REFERENCES trips(id) ON DELETE CASCADE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create legs table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_trips (
			id TEXT PRIMARY KEY,
			items TEXT NOT NULL,    -- JSON array of roster rows
			status TEXT NOT NULL,
			imported TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create pending_trips table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS position_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			speed_kts REAL NOT NULL,
			timestamp TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create position_samples table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_trips_status ON trips(status)`)
	if err != nil {
		return fmt.Errorf("failed to create index on trips.status: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_trips_date ON trips(date)`)
	if err != nil {
		return fmt.Errorf("failed to create index on trips.date: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_logpages_trip ON logpages(trip_id, seq)`)
	if err != nil {
		return fmt.Errorf("failed to create index on logpages.trip_id: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_legs_logpage ON legs(logpage_id, seq)`)
	if err != nil {
		return fmt.Errorf("failed to create index on legs.logpage_id: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_legs_trip ON legs(trip_id)`)
	if err != nil {
		return fmt.Errorf("failed to create index on legs.trip_id: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_pending_status ON pending_trips(status)`)
	if err != nil {
		return fmt.Errorf("failed to create index on pending_trips.status: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_samples_timestamp ON position_samples(timestamp)`)
	if err != nil {
		return fmt.Errorf("failed to create index on position_samples.timestamp: %w", err)
	}

	log.Info("Database schema initialized successfully")
	return nil
}

// timeLayout is the stored timestamp form
const timeLayout = time.RFC3339

// formatTime renders a timestamp for storage; nil stays NULL
func formatTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(timeLayout), Valid: true}
}

// parseTime converts a stored timestamp back; NULL stays nil
func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("invalid stored timestamp %q: %w", s.String, err)
	}
	return &t, nil
}
