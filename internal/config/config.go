// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	ETL      ETLConfig
	Cleaning CleaningConfig
	Run      RunConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 5m, covers ETL runs)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"5m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// ETLOnStart runs the pipeline once before serving (default: false)
	ETLOnStart bool `env:"SERVER_ETL_ON_START" default:"false"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP and X-Forwarded-For
	// headers are believed. Empty trusts none.
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`
}

// DatabaseConfig holds relational store settings.
// The store is optional: with no DSN the db sink and the query API are disabled.
type DatabaseConfig struct {
	// Driver selects the dialect: pgx, mysql, sqlite or snowflake (default: pgx)
	Driver string `env:"DB_DRIVER" default:"pgx"`

	// DSN is the connection string
	// Supports both DATABASE_URL and DB_DSN env vars for compatibility
	DSN string `env:"DATABASE_URL" envAlt:"DB_DSN"`

	// Table is the creature table name (default: creatures)
	Table string `env:"DB_TABLE" default:"creatures"`

	// BatchSize is the number of rows per insert statement (default: 500)
	BatchSize int `env:"DB_BATCH_SIZE" default:"500"`

	// MaxConns is the maximum number of open connections (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MaxIdleConns is the maximum number of idle connections (default: 4)
	MaxIdleConns int `env:"DB_MAX_IDLE_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// ConnectTimeout bounds the initial ping (default: 10s)
	ConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" default:"10s"`

	Snowflake SnowflakeConfig
}

// SnowflakeConfig builds a Snowflake DSN when DB_DRIVER=snowflake and no DSN is set.
type SnowflakeConfig struct {
	Account   string `env:"SNOWFLAKE_ACCOUNT"`
	User      string `env:"SNOWFLAKE_USER"`
	Password  string `env:"SNOWFLAKE_PASSWORD"`
	Database  string `env:"SNOWFLAKE_DATABASE"`
	Schema    string `env:"SNOWFLAKE_SCHEMA" default:"PUBLIC"`
	Warehouse string `env:"SNOWFLAKE_WAREHOUSE"`
	Role      string `env:"SNOWFLAKE_ROLE"`
}

// Enabled reports whether a relational store is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.DSN != "" || (c.Driver == "snowflake" && c.Snowflake.Account != "")
}

// ETLConfig holds pipeline settings.
type ETLConfig struct {
	// InputPath is the raw creature file (default: data/pokemon.csv)
	InputPath string `env:"ETL_INPUT_PATH" default:"data/pokemon.csv"`

	// OutputDir receives file sinks (default: output)
	OutputDir string `env:"ETL_OUTPUT_DIR" default:"output"`

	// BaseName is the file name, without extension, of every file sink (default: creatures_clean)
	BaseName string `env:"ETL_OUTPUT_NAME" default:"creatures_clean"`

	// SampleSize limits the rows read per run; 0 reads all (default: 50)
	SampleSize int `env:"ETL_SAMPLE_SIZE" default:"50"`

	// Sinks is a comma-separated list of csv, json, xlsx, db (default: csv,json)
	Sinks []string `env:"ETL_SINKS" default:"csv,json"`

	// Timestamped appends the run timestamp to file names (default: true)
	Timestamped bool `env:"ETL_TIMESTAMP_OUTPUTS" default:"true"`

	// SheetName names the workbook sheet (default: Creatures)
	SheetName string `env:"ETL_SHEET_NAME" default:"Creatures"`

	// Timeout bounds a single run (default: 5m)
	Timeout time.Duration `env:"ETL_TIMEOUT" default:"5m"`
}

// CleaningConfig holds cleaner policy settings.
type CleaningConfig struct {
	// FillStrategy for missing stats: median, mean or zero (default: median)
	FillStrategy string `env:"CLEAN_FILL_STRATEGY" default:"median"`

	// VariantTokens mark variant forms in names (default: Mega,Primal,Alolan)
	VariantTokens []string `env:"CLEAN_VARIANT_TOKENS" default:"Mega,Primal,Alolan"`

	// SecondaryTypeSentinel replaces a missing secondary type (default: None)
	SecondaryTypeSentinel string `env:"CLEAN_SECONDARY_SENTINEL" default:"None"`

	// VariantFormSentinel marks a record with no variant form (default: Base Form)
	VariantFormSentinel string `env:"CLEAN_VARIANT_SENTINEL" default:"Base Form"`
}

// RunConfig holds pipeline run limiting settings.
type RunConfig struct {
	// MaxConcurrent is the maximum number of parallel runs (default: 1)
	MaxConcurrent int `env:"RUN_MAX_CONCURRENT" default:"1"`

	// MaxWaitTime is how long to wait for a run slot (default: 5s)
	MaxWaitTime time.Duration `env:"RUN_MAX_WAIT_TIME" default:"5s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
