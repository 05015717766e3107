package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// ErrConnection is returned when a connection cannot be established or is
// used after it has been closed.
var ErrConnection = errors.New("database connection error")

// Credentials identify the database to connect to.
type Credentials struct {
	Username string
	Password string
	// Locator is host[:port]/service, or a full URL for the Postgres drivers.
	Locator string
	// Driver is a registered database/sql driver name. Defaults to DriverOracle.
	Driver string
	// Dialect overrides the dialect inferred from Driver.
	Dialect Dialect
}

// Handle owns a single database connection. It is not safe for concurrent use.
type Handle struct {
	db      *sql.DB
	conn    *sql.Conn
	dialect Dialect
	logger  zerolog.Logger
	target  string
}

// Open establishes a connection and verifies it with a ping before any query
// can be issued.
func Open(ctx context.Context, creds Credentials, logger zerolog.Logger) (*Handle, error) {
	driver := creds.Driver
	if driver == "" {
		driver = DriverOracle
	}
	dialect, err := creds.resolveDialect(driver)
	if err != nil {
		return nil, err
	}
	dsn, err := BuildDSN(driver, creds)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		logger.Error().Err(err).Str("driver", driver).Msg("database connection failed")
		return nil, fmt.Errorf("%w: open %s: %w", ErrConnection, driver, err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		logger.Error().Err(err).Str("driver", driver).Str("locator", creds.Locator).Msg("database connection failed")
		return nil, fmt.Errorf("%w: ping database: %w", ErrConnection, err)
	}

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("%w: acquire connection: %w", ErrConnection, err)
	}

	logger.Info().
		Str("driver", driver).
		Str("locator", creds.Locator).
		Str("user", creds.Username).
		Msg("database connection established")

	return &Handle{
		db:      sqlDB,
		conn:    conn,
		dialect: dialect,
		logger:  logger,
		target:  creds.Locator,
	}, nil
}

// WithConnection opens a connection, runs fn and closes the connection on
// every exit path, including a panic inside fn.
func WithConnection(ctx context.Context, creds Credentials, logger zerolog.Logger, fn func(*Handle) error) (err error) {
	h, err := Open(ctx, creds, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, h.Close())
	}()
	return fn(h)
}

// Dialect reports the SQL dialect of the connected database.
func (h *Handle) Dialect() Dialect {
	return h.dialect
}

// QueryContext runs a query on the pinned connection.
func (h *Handle) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if h == nil || h.conn == nil {
		return nil, fmt.Errorf("%w: connection is closed", ErrConnection)
	}
	return h.conn.QueryContext(ctx, query, args...)
}

// PingContext verifies the connection is still alive.
func (h *Handle) PingContext(ctx context.Context) error {
	if h == nil || h.conn == nil {
		return fmt.Errorf("%w: connection is closed", ErrConnection)
	}
	if err := h.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping database: %w", ErrConnection, err)
	}
	return nil
}

// Close releases the connection. Closing a nil or already closed handle is a
// no-op.
func (h *Handle) Close() error {
	if h == nil || h.conn == nil {
		return nil
	}
	err := multierr.Combine(h.conn.Close(), h.db.Close())
	h.conn = nil
	h.db = nil

	if err != nil {
		h.logger.Warn().Err(err).Str("locator", h.target).Msg("database connection closed with errors")
		return fmt.Errorf("%w: close: %w", ErrConnection, err)
	}
	h.logger.Info().Str("locator", h.target).Msg("database connection closed")
	return nil
}

func (c Credentials) resolveDialect(driver string) (Dialect, error) {
	if c.Dialect != "" {
		if !c.Dialect.valid() {
			return "", fmt.Errorf("%w: unknown dialect %q", ErrConnection, c.Dialect)
		}
		return c.Dialect, nil
	}
	d, ok := DialectForDriver(driver)
	if !ok {
		return "", fmt.Errorf("%w: no dialect known for driver %q, set one explicitly", ErrConnection, driver)
	}
	return d, nil
}
