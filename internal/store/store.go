// Package store provides the local durable store for fintrack.
//
// The store is an embedded SQLite database holding two independent
// collections:
//   - snapshot: the last known-good transaction list, keyed by id
//   - queue: mutations that have not been delivered, keyed by an
//     auto-incrementing sequence (insertion order = replay order)
//
// The snapshot mirrors the remote state. Queued mutations are not reflected
// in it until they are delivered and a later fetch refreshes the snapshot.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/sirupsen/logrus"

	"github.com/fintrack/fintrack/internal/logging"
)

// Store is the local durable store. The underlying database is opened on
// first use, so a Store can be shared by concurrent operations before any of
// them has touched the disk.
type Store struct {
	path   string
	logger logrus.FieldLogger

	mu   sync.Mutex
	conn *sql.DB
}

// New returns a Store backed by the SQLite file at path. Nothing is opened
// until the first operation.
//
// If logger is nil, log output is discarded.
func New(path string, logger logrus.FieldLogger) *Store {
	return &Store{
		path:   path,
		logger: logging.OrDiscard(logger).WithField("component", "store"),
	}
}

// Open returns a Store and opens it immediately, surfacing any error that
// New would defer to the first operation.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open(ctx, "~/.local/share/fintrack/fintrack.db", logger)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
func Open(ctx context.Context, path string, logger logrus.FieldLogger) (*Store, error) {
	s := New(path, logger)
	if _, err := s.handle(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// handle opens the database and creates the schema once. Concurrent callers
// share the same connection pool. A failed open is retried on the next call.
func (s *Store) handle(ctx context.Context) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn, nil
	}

	conn, err := openSQLite(ctx, s.path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s.conn = conn
	return conn, nil
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(wal)&_txlock=immediate"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return conn, nil
}

// initSchema creates both collections if they don't exist. It is idempotent.
func initSchema(ctx context.Context, conn *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshot (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS queue (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		action TEXT NOT NULL,
		payload TEXT NOT NULL,  -- JSON object of form fields
		enqueued_at TEXT NOT NULL
	);
	`

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close checkpoints the WAL and closes the database. Closing a store that was
// never opened is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.WithError(err).Warn("failed to checkpoint WAL")
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}
