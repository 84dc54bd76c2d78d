package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

type Options struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DB is the bun-backed implementation of Store.
type DB struct {
	bun    *bun.DB
	driver string
}

var _ Store = (*DB)(nil)

func Open(ctx context.Context, opts Options) (*DB, error) {
	sqlDB, err := sql.Open(driverName(opts.Driver), opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	// every connection to ":memory:" gets its own empty database
	if opts.Driver == DriverSQLite && isMemoryDSN(opts.DSN) {
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetMaxIdleConns(maxOpen)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	bdb, err := newBunDB(sqlDB, opts.Driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	s := &DB{bun: bdb, driver: opts.Driver}
	if err := s.Migrate(ctx); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	slog.Debug("database ready", "driver", opts.Driver, "max_open_conns", maxOpen)
	return s, nil
}

func newBunDB(sqlDB *sql.DB, driver string) (*bun.DB, error) {
	switch driver {
	case DriverSQLite:
		return bun.NewDB(sqlDB, sqlitedialect.New()), nil
	case DriverMySQL:
		return bun.NewDB(sqlDB, mysqldialect.New()), nil
	case DriverPostgres:
		return bun.NewDB(sqlDB, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// driverName maps config names onto registered database/sql drivers.
func driverName(driver string) string {
	if driver == DriverPostgres {
		return "pgx"
	}
	return driver
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

func (s *DB) Ping(ctx context.Context) error {
	return s.bun.PingContext(ctx)
}

func (s *DB) Close() error {
	return s.bun.Close()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// likePattern builds a case-insensitive contains match. % and _ in search
// stay wildcards.
func likePattern(search string) string {
	return "%" + strings.ToLower(strings.TrimSpace(search)) + "%"
}

// mapDBError folds driver-specific unique violations into ErrDuplicate.
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

const (
	mysqlDuplicateEntry = 1062
	pgUniqueViolation   = "23505"
)

func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}
