// Package store manages the SQLite database backing the Sift system:
// credentials, projects, the append-only event log, and the archive
// catalog. It splits a single-writer connection from a concurrent read
// pool, following the WAL-mode setup used for the index database.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/siftlog/sift/internal/errors"
)

// Options configures database access behavior.
type Options struct {
	// Timeout is the per-call storage timeout. Calls exceeding it surface
	// as STORAGE_UNAVAILABLE instead of hanging the request.
	Timeout time.Duration

	// ReadPoolSize is the max concurrent read connections.
	ReadPoolSize int

	// Retry controls bounded retry of retryable storage failures.
	Retry RetryPolicy
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		Timeout:      5 * time.Second,
		ReadPoolSize: 8,
		Retry:        DefaultRetryPolicy(),
	}
}

// DB wraps the write connection and read pool for the sift database.
type DB struct {
	write  *sql.DB // Single writer
	read   *sql.DB // Concurrent readers
	path   string
	opts   Options
	mu     sync.Mutex // Serializes writes
	closed bool
}

// Open opens (or creates) the sift database at path and initializes the
// schema.
func Open(path string, opts Options) (*DB, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.ReadPoolSize <= 0 {
		opts.ReadPoolSize = DefaultOptions().ReadPoolSize
	}

	// Write connection: single writer with WAL mode
	write, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}
	write.SetMaxOpenConns(1)
	write.SetMaxIdleConns(1)

	// Read connection pool: concurrent readers
	read, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("store: failed to open read database: %w", err)
	}
	read.SetMaxOpenConns(opts.ReadPoolSize)
	read.SetMaxIdleConns(opts.ReadPoolSize)
	read.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		write: write,
		read:  read,
		path:  path,
		opts:  opts,
	}

	if err := db.initSchema(); err != nil {
		read.Close()
		write.Close()
		return nil, fmt.Errorf("store: failed to initialize schema: %w", err)
	}

	return db, nil
}

// initSchema creates all required tables and indexes.
func (d *DB) initSchema() error {
	for _, stmt := range schemaSQL() {
		if _, err := d.write.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Write runs fn against the write connection under the writer lock,
// with the storage timeout and bounded retry applied.
func (d *DB) Write(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	return d.opts.Retry.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()

		d.mu.Lock()
		defer d.mu.Unlock()
		return classify(fn(callCtx, d.write))
	})
}

// Read runs fn against the read pool with the storage timeout and
// bounded retry applied. Reads run concurrently with each other and
// with writes.
func (d *DB) Read(ctx context.Context, fn func(ctx context.Context, db *sql.DB) error) error {
	return d.opts.Retry.Execute(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
		return classify(fn(callCtx, d.read))
	})
}

// Writer exposes the raw write connection for provisioning tools that
// manage their own transactions.
func (d *DB) Writer() *sql.DB {
	return d.write
}

// Close closes both connections.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true

	rerr := d.read.Close()
	werr := d.write.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// classify maps low-level database failures to the structured error
// taxonomy. Timeouts and lock contention become STORAGE_UNAVAILABLE
// (retryable); everything else passes through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *errors.SiftError
	if stderrors.As(err, &se) {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewStorageUnavailable("storage call timed out", err)
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return errors.NewStorageUnavailable("database locked", err)
	}
	return err
}
