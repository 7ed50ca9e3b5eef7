// Package store is the relational sink and the query repository for cleaned
// creature records.
//
// One Store serves four dialects through sqlx: PostgreSQL (pgx), MySQL,
// SQLite and Snowflake. Queries are written with '?' placeholders and rebound
// for the driver. Table names come from validated configuration and are the
// only identifiers spliced into SQL.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	sf "github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/creature-etl/internal/config"
)

func init() {
	// sqlx does not know these driver names; both take '?' placeholders.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
	sqlx.BindDriver("snowflake", sqlx.QUESTION)
}

// Store reads and writes creature records in one relational database.
type Store struct {
	db        *sqlx.DB
	dialect   dialect
	table     string
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithBatchSize sets the number of rows per insert statement.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithClock sets the clock used for created_at and updated_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open connects to the database described by cfg and makes sure the schema
// exists.
func Open(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*Store, error) {
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)
	if d.name == "sqlite" {
		// One writer; also keeps an in-memory database on a single connection.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
	}

	opts = append([]Option{WithBatchSize(cfg.BatchSize)}, opts...)
	s, err := New(db, cfg.Driver, cfg.Table, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	stats := db.Stats()
	s.logger.Info("database connected",
		"driver", cfg.Driver,
		"table", cfg.Table,
		"max_open", stats.MaxOpenConnections)
	return s, nil
}

// New wraps an open database. driver names the dialect.
func New(db *sqlx.DB, driver, table string, opts ...Option) (*Store, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if table == "" {
		table = "creatures"
	}
	s := &Store{
		db:        db,
		dialect:   d,
		table:     table,
		batchSize: 500,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "store", "driver", d.name)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Table returns the creature table name.
func (s *Store) Table() string {
	return s.table
}

// buildDSN returns the connection string for cfg. MySQL DSNs get parseTime so
// timestamps scan into time.Time; Snowflake DSNs can be built from parts.
func buildDSN(cfg config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "mysql":
		mc, err := mysql.ParseDSN(cfg.DSN)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		mc.ParseTime = true
		mc.Loc = time.UTC
		return mc.FormatDSN(), nil

	case "snowflake":
		if cfg.DSN != "" {
			return cfg.DSN, nil
		}
		sc := cfg.Snowflake
		dsn, err := sf.DSN(&sf.Config{
			Account:   sc.Account,
			User:      sc.User,
			Password:  sc.Password,
			Database:  sc.Database,
			Schema:    sc.Schema,
			Warehouse: sc.Warehouse,
			Role:      sc.Role,
		})
		if err != nil {
			return "", fmt.Errorf("build snowflake dsn: %w", err)
		}
		return dsn, nil

	default:
		if cfg.DSN == "" {
			return "", fmt.Errorf("%s: DATABASE_URL is not set", cfg.Driver)
		}
		return cfg.DSN, nil
	}
}
