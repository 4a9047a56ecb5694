package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
}

var _ Store = (*SQLiteStore)(nil)

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: is a separate database.
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database connection and enables WAL mode for file databases.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	if s.cfg.Path != MemoryPath {
		dsn += "&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}

// CreateMonitor inserts a new monitor. Names are unique.
func (s *SQLiteStore) CreateMonitor(ctx context.Context, monitor *MonitorRecord) error {
	query := `
		INSERT INTO monitors (id, name, uri, type, status, frequency, locations, sla_threshold, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	locations, err := encodeLocations(monitor.Locations)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if monitor.CreatedAt.IsZero() {
		monitor.CreatedAt = now
	}
	monitor.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, query,
		monitor.ID,
		monitor.Name,
		monitor.URI,
		monitor.Type,
		monitor.Status,
		monitor.Frequency,
		locations,
		monitor.SLAThreshold,
		monitor.CreatedAt,
		monitor.UpdatedAt,
	)

	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateName, monitor.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	return nil
}

// GetMonitor retrieves a monitor by ID
func (s *SQLiteStore) GetMonitor(ctx context.Context, id string) (*MonitorRecord, error) {
	query := `
		SELECT id, name, uri, type, status, frequency, locations, sla_threshold, created_at, updated_at
		FROM monitors
		WHERE id = ?
	`

	monitor, err := scanMonitor(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monitor: %w", err)
	}

	return monitor, nil
}

// GetMonitorByName retrieves a monitor by its unique name
func (s *SQLiteStore) GetMonitorByName(ctx context.Context, name string) (*MonitorRecord, error) {
	query := `
		SELECT id, name, uri, type, status, frequency, locations, sla_threshold, created_at, updated_at
		FROM monitors
		WHERE name = ?
	`

	monitor, err := scanMonitor(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: name %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get monitor by name: %w", err)
	}

	return monitor, nil
}

// ReplaceMonitor overwrites every mutable column of an existing monitor.
func (s *SQLiteStore) ReplaceMonitor(ctx context.Context, monitor *MonitorRecord) error {
	query := `
		UPDATE monitors
		SET name = ?, uri = ?, type = ?, status = ?, frequency = ?, locations = ?, sla_threshold = ?, updated_at = ?
		WHERE id = ?
	`

	locations, err := encodeLocations(monitor.Locations)
	if err != nil {
		return err
	}
	monitor.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, query,
		monitor.Name,
		monitor.URI,
		monitor.Type,
		monitor.Status,
		monitor.Frequency,
		locations,
		monitor.SLAThreshold,
		monitor.UpdatedAt,
		monitor.ID,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateName, monitor.Name)
	}
	if err != nil {
		return fmt.Errorf("failed to replace monitor: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, monitor.ID)
	}

	return nil
}

// DeleteMonitor deletes a monitor by ID
func (s *SQLiteStore) DeleteMonitor(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM monitors WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete monitor: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// ListMonitors lists monitors ordered by name with pagination
func (s *SQLiteStore) ListMonitors(ctx context.Context, limit, offset int) ([]*MonitorRecord, error) {
	query := `
		SELECT id, name, uri, type, status, frequency, locations, sla_threshold, created_at, updated_at
		FROM monitors
		ORDER BY name
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list monitors: %w", err)
	}
	defer rows.Close()

	monitors := []*MonitorRecord{}
	for rows.Next() {
		monitor, err := scanMonitor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan monitor: %w", err)
		}
		monitors = append(monitors, monitor)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating monitors: %w", err)
	}

	return monitors, nil
}

// CreateAuditEntry creates a new audit log entry
func (s *SQLiteStore) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	query := `
		INSERT INTO audit (operation, monitor_id, actor, status_code, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, query,
		entry.Operation,
		entry.MonitorID,
		entry.Actor,
		entry.StatusCode,
		entry.Details,
		entry.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get audit entry ID: %w", err)
	}

	entry.ID = id
	return nil
}

// ListAuditEntries lists audit entries, newest first, optionally filtered by operation
func (s *SQLiteStore) ListAuditEntries(ctx context.Context, operation *string, limit, offset int) ([]*AuditEntry, error) {
	query := `
		SELECT id, operation, monitor_id, actor, status_code, details, timestamp
		FROM audit
		WHERE (? IS NULL OR operation = ?)
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, operation, operation, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*AuditEntry{}
	for rows.Next() {
		entry := &AuditEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Operation,
			&entry.MonitorID,
			&entry.Actor,
			&entry.StatusCode,
			&entry.Details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return entries, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMonitor(row rowScanner) (*MonitorRecord, error) {
	monitor := &MonitorRecord{}
	var (
		frequency sql.NullInt64
		threshold sql.NullFloat64
		locations string
	)

	err := row.Scan(
		&monitor.ID,
		&monitor.Name,
		&monitor.URI,
		&monitor.Type,
		&monitor.Status,
		&frequency,
		&locations,
		&threshold,
		&monitor.CreatedAt,
		&monitor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if frequency.Valid {
		v := int(frequency.Int64)
		monitor.Frequency = &v
	}
	if threshold.Valid {
		v := threshold.Float64
		monitor.SLAThreshold = &v
	}
	if err := json.Unmarshal([]byte(locations), &monitor.Locations); err != nil {
		return nil, fmt.Errorf("failed to decode locations: %w", err)
	}

	return monitor, nil
}

func encodeLocations(locations []string) (string, error) {
	if locations == nil {
		locations = []string{}
	}
	data, err := json.Marshal(locations)
	if err != nil {
		return "", fmt.Errorf("failed to encode locations: %w", err)
	}
	return string(data), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
