// Package cli builds the creature-etl command tree: run, info and serve.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/creature-etl/internal/config"
	"github.com/JonMunkholm/creature-etl/internal/logging"
	"github.com/JonMunkholm/creature-etl/internal/pipeline"
	"github.com/JonMunkholm/creature-etl/internal/store"
)

// env is shared by every subcommand once PersistentPreRunE has run.
type env struct {
	stdout io.Writer
	stderr io.Writer

	envFile string
	cfg     *config.Config
	logger  *slog.Logger
}

// NewRootCommand returns the creature-etl root command.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	e := &env{stdout: stdout, stderr: stderr}

	rc := &cobra.Command{
		Use:   "creature-etl",
		Short: "Extract, clean and load creature records",
		Long: `creature-etl reads a raw creature CSV, cleans it and writes the result to
CSV, JSON and XLSX files and, when a database is configured, to a relational
table that the HTTP API serves.

Configuration comes from the environment (and an optional .env file); flags
override it per invocation.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup()
		},
	}
	rc.PersistentFlags().StringVar(&e.envFile, "env-file", ".env", "dotenv file to load before reading the environment; empty skips it")

	rc.AddCommand(newRunCommand(e))
	rc.AddCommand(newInfoCommand(e))
	rc.AddCommand(newServeCommand(e))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// setup loads the dotenv file and configuration, then installs the logger.
// Logs go to stderr so tables on stdout stay clean.
func (e *env) setup() error {
	dotenv := false
	if e.envFile != "" {
		// Overload so the file wins over stale shell exports.
		err := godotenv.Overload(e.envFile)
		switch {
		case err == nil:
			dotenv = true
		case !errors.Is(err, fs.ErrNotExist):
			return fmt.Errorf("load %s: %w", e.envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	e.cfg = cfg

	e.logger = logging.New(e.stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(e.logger)
	e.logger.Debug("configuration loaded", "dotenv", dotenv, "config", cfg.String())
	return nil
}

// openStore connects to the configured database. It returns nil, nil when
// none is configured.
func (e *env) openStore(ctx context.Context) (*store.Store, error) {
	if !e.cfg.Database.Enabled() {
		e.logger.Info("no database configured; db sink and query API disabled")
		return nil, nil
	}
	st, err := store.Open(ctx, e.cfg.Database, store.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	e.logger.Info("connected to database", "driver", e.cfg.Database.Driver, "table", st.Table())
	return st, nil
}

// newPipeline builds a pipeline over st. A nil st leaves the pipeline
// without a relational sink.
func (e *env) newPipeline(st *store.Store) *pipeline.Pipeline {
	var ps pipeline.Store
	if st != nil {
		ps = st
	}
	return pipeline.New(e.cfg, ps, e.logger)
}
