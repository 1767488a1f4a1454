// Package migrations applies the embedded SQL schema using goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed sql
var embedded embed.FS

const (
	lockName    = "portfolio-api-migrations"
	lockID      = 7364912043 // pg advisory lock key for lockName
	lockRetries = 10
	lockBackoff = 200 * time.Millisecond
)

// MigrationRunner manages schema migrations for one database handle.
type MigrationRunner struct {
	db       *sql.DB
	dialect  goose.Dialect
	provider *goose.Provider
}

// NewMigrationRunner creates a runner for driver ("sqlite", "sqlite3",
// "postgres" or "mysql") backed by the migrations embedded in the binary.
func NewMigrationRunner(db *sql.DB, driver string) (*MigrationRunner, error) {
	if db == nil {
		return nil, errors.New("database connection is nil")
	}
	dialect, dir, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	fsys, err := fs.Sub(embedded, "sql/"+dir)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations for %s: %w", dir, err)
	}
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}
	return &MigrationRunner{db: db, dialect: dialect, provider: provider}, nil
}

func dialectFor(driver string) (goose.Dialect, string, error) {
	switch driver {
	case "sqlite", "sqlite3":
		return goose.DialectSQLite3, "sqlite", nil
	case "postgres", "pgx":
		return goose.DialectPostgres, "postgres", nil
	case "mysql":
		return goose.DialectMySQL, "mysql", nil
	default:
		return "", "", fmt.Errorf("unsupported migration driver: %q", driver)
	}
}

// Up applies all pending migrations and returns how many ran.
func (m *MigrationRunner) Up(ctx context.Context) (int, error) {
	release, err := m.acquireLock(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer release()

	results, err := m.provider.Up(ctx)
	if err != nil {
		return len(results), fmt.Errorf("failed to apply migrations: %w", err)
	}
	return len(results), nil
}

// Down rolls back the most recently applied migration.
func (m *MigrationRunner) Down(ctx context.Context) error {
	release, err := m.acquireLock(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer release()

	if _, err := m.provider.Down(ctx); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

// Version returns the current schema version, 0 when nothing is applied.
func (m *MigrationRunner) Version(ctx context.Context) (int64, error) {
	v, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get migration version: %w", err)
	}
	return v, nil
}

// Status lists every known migration with its applied state.
func (m *MigrationRunner) Status(ctx context.Context) ([]*goose.MigrationStatus, error) {
	st, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get migration status: %w", err)
	}
	return st, nil
}

// acquireLock serializes migrations across instances. Postgres and MySQL
// hold a session lock on a dedicated connection; SQLite relies on its file lock.
func (m *MigrationRunner) acquireLock(ctx context.Context) (func(), error) {
	switch m.dialect {
	case goose.DialectPostgres:
		return m.sessionLock(ctx,
			"SELECT pg_try_advisory_lock($1)", "SELECT pg_advisory_unlock($1)", int64(lockID))
	case goose.DialectMySQL:
		return m.sessionLock(ctx,
			"SELECT GET_LOCK(?, 0) = 1", "SELECT RELEASE_LOCK(?)", lockName)
	default:
		return func() {}, nil
	}
}

func (m *MigrationRunner) sessionLock(ctx context.Context, tryQuery, releaseQuery string, key any) (func(), error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve lock connection: %w", err)
	}
	for i := 0; i < lockRetries; i++ {
		var acquired sql.NullBool
		if err := conn.QueryRowContext(ctx, tryQuery, key).Scan(&acquired); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to try migration lock: %w", err)
		}
		if acquired.Valid && acquired.Bool {
			return func() {
				_, _ = conn.ExecContext(context.Background(), releaseQuery, key)
				_ = conn.Close()
			}, nil
		}
		select {
		case <-ctx.Done():
			_ = conn.Close()
			return nil, ctx.Err()
		case <-time.After(lockBackoff):
		}
	}
	_ = conn.Close()
	return nil, fmt.Errorf("migration lock %q still held after %d attempts", lockName, lockRetries)
}
