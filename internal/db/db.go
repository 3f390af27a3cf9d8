package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"student-records/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	DriverPG  = "pg"
	DriverPGX = "pgx"
)

// DSN builds a postgres:// URL from the database settings.
func DSN(cfg config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, cfg.Port),
		Path:     "/" + cfg.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String()
}

// New opens the connection pool. Connections are established lazily, so an
// unreachable server surfaces on the first query or health check rather than here.
func New(cfg config.DatabaseConfig) (*bun.DB, error) {
	db, err := NewWithDSN(cfg.Driver, DSN(cfg), time.Duration(cfg.ConnTimeoutMillis)*time.Millisecond)
	if err != nil {
		return nil, err
	}

	configurePool(db, cfg)
	return db, nil
}

// NewWithDSN opens a pool on an explicit DSN (useful for testing)
func NewWithDSN(driver, dsn string, dialTimeout time.Duration) (*bun.DB, error) {
	var sqldb *sql.DB

	switch driver {
	case "", DriverPG:
		opts := []pgdriver.Option{pgdriver.WithDSN(dsn)}
		if dialTimeout > 0 {
			opts = append(opts, pgdriver.WithDialTimeout(dialTimeout))
		}
		sqldb = sql.OpenDB(pgdriver.NewConnector(opts...))
	case DriverPGX:
		connConfig, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse database DSN: %w", err)
		}
		if dialTimeout > 0 {
			connConfig.ConnectTimeout = dialTimeout
		}
		sqldb = stdlib.OpenDB(*connConfig)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func configurePool(db *bun.DB, cfg config.DatabaseConfig) {
	sqlDB := db.DB

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 20
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(maxOpen)

	idleTimeout := cfg.IdleTimeoutMillis
	if idleTimeout <= 0 {
		idleTimeout = 30000
	}
	sqlDB.SetConnMaxIdleTime(time.Duration(idleTimeout) * time.Millisecond)

	slog.Info("database pool configured",
		"driver", cfg.Driver,
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.DBName,
		"user", cfg.User,
		"max_open_conns", maxOpen,
		"conn_max_idle_time_ms", idleTimeout,
		"connect_timeout_ms", cfg.ConnTimeoutMillis,
	)
}

func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

// RunMigrations creates the tables for models when they do not exist yet.
// Existing tables are left untouched.
func RunMigrations(ctx context.Context, db bun.IDB, models ...interface{}) error {
	for _, model := range models {
		_, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create table for model: %w", err)
		}
	}
	slog.Info("database migrations completed successfully")
	return nil
}
