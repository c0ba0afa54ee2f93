// Package store persists settings, posts, tags and categories in SQLite.
//
// Each table is reached through a small repository interface. Repositories
// obtained from Store.Repos run directly against the connection pool; the ones
// handed to a Store.WithTx callback share a single transaction.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/eringen/blogpublisher/apperr"
)

//go:embed migrations/*.sql
var migrations embed.FS

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repos bundles the repositories that share one connection or transaction.
type Repos struct {
	Settings   SettingsRepository
	Posts      PostRepository
	Tags       TermRepository
	Categories TermRepository
}

// Store wraps a SQLite database and hands out repositories over it.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for created/published dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (or creates) the SQLite database at path, ensures the data
// directory exists, and applies pending schema migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data directory: %w", apperr.ErrPersistence, err)
	}
	// Pragmas go in the DSN so every pooled connection gets them. WAL lets the
	// dashboard read while a save is writing; busy_timeout makes writers wait
	// instead of failing with SQLITE_BUSY; immediate transactions take the
	// write lock up front so two saves never deadlock on upgrade.
	dsn := "file:" + path + "?" + url.Values{
		"_pragma": {"journal_mode(WAL)", "busy_timeout(5000)", "synchronous(NORMAL)"},
		"_txlock": {"immediate"},
	}.Encode()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", apperr.ErrPersistence, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	s := &Store{db: db, path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate brings the schema up to date. It is idempotent.
func (s *Store) migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("%w: load migrations: %w", apperr.ErrPersistence, err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("%w: migration driver: %w", apperr.ErrPersistence, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("%w: init migrations: %w", apperr.ErrPersistence, err)
	}
	// m.Close is not called: the sqlite driver would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: apply migrations: %w", apperr.ErrPersistence, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Settings returns the settings repository bound to the connection pool.
func (s *Store) Settings() SettingsRepository {
	return &SettingsStore{q: s.db}
}

// Posts returns the post repository bound to the connection pool.
func (s *Store) Posts() PostRepository {
	return &PostStore{q: s.db, now: s.now}
}

// Tags returns the tag repository bound to the connection pool.
func (s *Store) Tags() TermRepository {
	return &TermStore{q: s.db, table: tagsTable, now: s.now}
}

// Categories returns the category repository bound to the connection pool.
func (s *Store) Categories() TermRepository {
	return &TermStore{q: s.db, table: categoriesTable, now: s.now}
}

// Repos returns all repositories bound to the connection pool.
func (s *Store) Repos() Repos {
	return s.repos(s.db)
}

func (s *Store) repos(q dbtx) Repos {
	return Repos{
		Settings:   &SettingsStore{q: q},
		Posts:      &PostStore{q: q, now: s.now},
		Tags:       &TermStore{q: q, table: tagsTable, now: s.now},
		Categories: &TermStore{q: q, table: categoriesTable, now: s.now},
	}
}

// WithTx runs fn inside a single transaction. Any error returned by fn rolls
// the whole transaction back; nothing fn wrote is visible afterwards.
func (s *Store) WithTx(ctx context.Context, fn func(Repos) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", apperr.ErrPersistence, err)
	}
	if err := fn(s.repos(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %w", apperr.ErrPersistence, err)
	}
	return nil
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperr.ErrPersistence, op, err)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
