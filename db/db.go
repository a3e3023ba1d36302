package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	//nolint:revive,nolintlint // Idiomatic way of loading DB libraries.
	_ "github.com/glebarez/go-sqlite"
	//nolint:revive,nolintlint // Idiomatic way of loading DB libraries.
	_ "github.com/jackc/pgx/v5/stdlib"

	"go.hackfix.me/schemer/db/types"
)

// DB wraps sql.DB with the dialect it speaks and a guaranteed single release
// of the underlying pool.
type DB struct {
	*sql.DB
	dialect   types.Dialect
	timeNow   func() time.Time
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

var _ types.Store = (*DB)(nil)

// Open creates and configures a new connection pool for the given connection
// string. The dialect is detected from the connection string, see
// DetectDialect. The pool is pinged before returning, so that unreachable
// databases are reported before any migration work starts.
func Open(
	ctx context.Context, connString string, timeNow func() time.Time, logger *slog.Logger,
) (*DB, error) {
	if strings.TrimSpace(connString) == "" {
		return nil, errors.New("connection string is empty")
	}
	if timeNow == nil {
		timeNow = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}

	dialect := DetectDialect(connString)
	dsn := connString
	if dialect == types.DialectSQLite {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}

	sqlDB, err := sql.Open(dialect.Driver(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed opening %s database: %w", dialect, err)
	}

	d := &DB{
		DB:      sqlDB,
		dialect: dialect,
		timeNow: timeNow,
		logger:  logger.With("component", "db", "dialect", string(dialect)),
	}

	if dialect == types.DialectSQLite {
		if isInMemory(dsn) {
			// See https://github.com/mattn/go-sqlite3#faq
			d.SetMaxIdleConns(10)
			d.SetConnMaxLifetime(time.Duration(math.Inf(1)))
		}

		// Enable foreign key enforcement
		if _, err = d.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("failed enabling foreign key enforcement: %w", err)
		}
	}

	if err = d.PingContext(ctx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed connecting to %s database: %w", dialect, err)
	}

	d.logger.Debug("opened database connection pool")

	return d, nil
}

// Close releases the connection pool. It is safe to call multiple times and
// from multiple goroutines; only the first call closes the pool, and every
// call returns its result.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.DB.Close()
		if d.closeErr != nil {
			d.logger.Warn("failed closing database connection pool", "error", d.closeErr)
			return
		}
		d.logger.Debug("closed database connection pool")
	})

	return d.closeErr
}

// Dialect returns the SQL dialect spoken by the database.
func (d *DB) Dialect() types.Dialect {
	return d.dialect
}

// TimeNow returns the current system time.
func (d *DB) TimeNow() time.Time {
	return d.timeNow()
}

// DetectDialect returns the dialect implied by a connection string.
// PostgreSQL URLs (postgres://, postgresql://) and key=value DSNs that name a
// host or database select PostgreSQL. Everything else, including sqlite://
// URLs, file: URIs, :memory: and plain file paths, selects SQLite.
func DetectDialect(connString string) types.Dialect {
	lower := strings.ToLower(strings.TrimSpace(connString))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return types.DialectPostgres
	case strings.Contains(lower, "://"), strings.HasPrefix(lower, "file:"):
		return types.DialectSQLite
	}

	for _, field := range strings.Fields(lower) {
		if strings.HasPrefix(field, "host=") || strings.HasPrefix(field, "dbname=") {
			return types.DialectPostgres
		}
	}

	return types.DialectSQLite
}

func isInMemory(dsn string) bool {
	return strings.Contains(dsn, "mode=memory") || strings.Contains(dsn, ":memory:")
}
