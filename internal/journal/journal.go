package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - Added index on operations(device_id, seq) for per-device replay
const currentSchemaVersion = 1

// Op names a journaled file operation.
type Op string

const (
	OpOpen    Op = "open"
	OpRelease Op = "release"
	OpSeek    Op = "seek"
	OpRead    Op = "read"
	OpWrite   Op = "write"
)

// DeviceRecord describes one registered device instance.
type DeviceRecord struct {
	ID            string
	Name          string
	Capacity      int
	RegisteredSeq int64
}

// Record is one dispatched file operation and its outcome.
type Record struct {
	Seq       int64
	DeviceID  string
	SessionID string
	Op        Op

	// Arguments. Offset and Whence are set for seek, Count for read/write.
	Offset int64
	Whence int
	Count  int

	// Data holds the bytes actually transferred by a successful read or
	// write (Result bytes). Empty otherwise.
	Data []byte

	// Result is the new position for seek and the byte count for read/write.
	Result    int64
	PosAfter  int64
	ErrorCode string
}

// Journal provides durable storage for device operations.
type Journal struct {
	db    *sql.DB
	clock *Clock
}

// Open creates or opens a journal database at the given path.
// Applies pragmas and migrations, then resumes the clock after the
// highest stored seq. Safe to call on an existing journal.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	last, err := lastSeq(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to resume clock: %w", err)
	}

	return &Journal{db: db, clock: NewClockAt(last)}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Clock returns the journal's logical clock.
func (j *Journal) Clock() *Clock {
	return j.clock
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_operations_device
		ON operations(device_id, seq)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// lastSeq returns the highest seq in either table, 0 for an empty journal.
func lastSeq(db *sql.DB) (int64, error) {
	var seq int64
	err := db.QueryRow(`
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM operations), 0),
			COALESCE((SELECT MAX(registered_seq) FROM devices), 0)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (j *Journal) verifyPragma(ctx context.Context, name, expected string) error {
	var value string
	if err := j.db.QueryRowContext(ctx, fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
