// Package store provides SQLite-backed lookups over the node's local
// databases: the address and routing database, and the policy database.
//
// The daemon opens both databases read-only. Writable handles exist for
// tooling and test fixtures; they create and migrate the schema on open.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Options configures how a database is opened.
type Options struct {
	// ReadOnly opens the database with mode=ro. The file is not created and
	// no migrations run; a missing file surfaces as ErrUnavailable on first use.
	ReadOnly bool

	// BusyTimeout is how long a query waits on a locked database.
	BusyTimeout time.Duration

	// MaxConnections bounds the connection pool. Lookups from concurrent
	// requests each take their own connection.
	MaxConnections int
}

// DefaultOptions returns read-only options suitable for the daemon.
func DefaultOptions() Options {
	return Options{
		ReadOnly:       true,
		BusyTimeout:    5 * time.Second,
		MaxConnections: 8,
	}
}

// WritableOptions returns options that create and migrate the database.
func WritableOptions() Options {
	opts := DefaultOptions()
	opts.ReadOnly = false
	return opts
}

// dsn builds the go-sqlite3 connection string for path.
func dsn(path string, opts Options) string {
	params := url.Values{}
	if opts.ReadOnly {
		params.Set("mode", "ro")
	} else {
		params.Set("mode", "rwc")
		params.Set("_journal_mode", "WAL")
		params.Set("_foreign_keys", "on")
	}
	if opts.BusyTimeout > 0 {
		params.Set("_busy_timeout", strconv.FormatInt(opts.BusyTimeout.Milliseconds(), 10))
	}
	return "file:" + path + "?" + params.Encode()
}

// open opens the database at path, applying migrations for writable handles.
func open(path string, opts Options, migrations []Migration) (*sql.DB, error) {
	if !opts.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn(path, opts))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.MaxConnections > 0 {
		db.SetMaxOpenConns(opts.MaxConnections)
		db.SetMaxIdleConns(opts.MaxConnections)
	}

	if opts.ReadOnly {
		return db, nil
	}

	if err := migrate(context.Background(), db, migrations); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// handle is the part shared by both databases.
type handle struct {
	db   *sql.DB
	path string
}

// Path returns the database file path.
func (h *handle) Path() string {
	return h.path
}

// Ping verifies the database can be opened and read.
func (h *handle) Ping(ctx context.Context) error {
	var n int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&n); err != nil {
		return unavailable("ping "+filepath.Base(h.path), err)
	}
	return nil
}

// Close closes the database connection.
func (h *handle) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}
