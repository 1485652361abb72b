package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/lagrafica/mailboard/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite
// database. A process-level mutex serializes writes on top of SQLite's
// own locking, so the background poller and foreground callers follow
// a single-writer discipline.
type SQLiteStore struct {
	db *sqlx.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// IsProcessed reports whether the composite key has a marker. Always
// reads the committed state, so each check in a cycle sees the writes
// of the previous messages.
func (s *SQLiteStore) IsProcessed(
	ctx context.Context, owner string, uid uint32,
) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM processed_markers WHERE owner = ? AND uid = ?",
		owner, uid,
	)
	if err != nil {
		return false, fmt.Errorf("checking marker (%s, %d): %w", owner, uid, err)
	}
	return count > 0, nil
}

// MarkProcessed records a marker. Re-marking an existing key is a
// no-op so a marker is written at most once per message per mailbox.
func (s *SQLiteStore) MarkProcessed(
	ctx context.Context, m model.ProcessedMarker,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := m.ProcessedAt
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO processed_markers (
			owner, uid, subject, message_id, processed_at
		) VALUES (?, ?, ?, ?, ?)`,
		m.Owner, m.UID, m.Subject, m.MessageID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("marking processed (%s, %d): %w", m.Owner, m.UID, err)
	}

	return nil
}

// ProcessedCount returns the number of recorded markers.
func (s *SQLiteStore) ProcessedCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM processed_markers")
	if err != nil {
		return 0, fmt.Errorf("counting markers: %w", err)
	}
	return count, nil
}

// LogActivity appends an entry to the activity trail. A missing ID is
// filled with a fresh UUID.
func (s *SQLiteStore) LogActivity(ctx context.Context, a model.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	at := a.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO activity (id, kind, text, actor, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Kind, a.Text, a.Actor, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("logging activity: %w", err)
	}

	return nil
}

// RecentActivity returns the newest entries, most recent first.
func (s *SQLiteStore) RecentActivity(
	ctx context.Context, limit int,
) ([]model.Activity, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryxContext(ctx,
		"SELECT id, kind, text, actor, created_at FROM activity ORDER BY created_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying activity: %w", err)
	}
	defer rows.Close()

	var entries []model.Activity
	for rows.Next() {
		var (
			a         model.Activity
			createdAt time.Time
		)
		if err := rows.Scan(&a.ID, &a.Kind, &a.Text, &a.Actor, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning activity row: %w", err)
		}
		a.CreatedAt = createdAt
		entries = append(entries, a)
	}

	return entries, rows.Err()
}
