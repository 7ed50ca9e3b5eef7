package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/JonMunkholm/creature-etl/internal/pipeline"
)

type runFlags struct {
	input       string
	limit       int
	sinks       []string
	outDir      string
	timestamped bool
}

func (f *runFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.input, "input", "i", "", "raw creature CSV (default ETL_INPUT_PATH)")
	fs.IntVarP(&f.limit, "limit", "n", 0, "rows to read; 0 uses ETL_SAMPLE_SIZE, -1 reads all")
	fs.StringSliceVarP(&f.sinks, "sinks", "s", nil, "sinks to write: csv, json, xlsx, db (default ETL_SINKS)")
	fs.StringVarP(&f.outDir, "out-dir", "o", "", "directory for file sinks (default ETL_OUTPUT_DIR)")
	fs.BoolVar(&f.timestamped, "timestamp", true, "append the run timestamp to file names")
}

// options converts the flags to RunOptions. --timestamp only overrides the
// configuration when given explicitly.
func (f *runFlags) options(fs *pflag.FlagSet) pipeline.RunOptions {
	opts := pipeline.RunOptions{
		InputPath: f.input,
		Limit:     f.limit,
		Sinks:     f.sinks,
		OutputDir: f.outDir,
	}
	if fs.Changed("timestamp") {
		ts := f.timestamped
		opts.Timestamped = &ts
	}
	return opts
}

func newRunCommand(e *env) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long: `
Reads the input, runs every cleaning pass, checks integrity and writes each
requested sink. A failed sink does not stop the others; the command exits
non-zero if any sink failed.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return e.run(ctx, flags.options(cmd.Flags()))
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

func (e *env) run(ctx context.Context, opts pipeline.RunOptions) error {
	st, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	res, err := e.newPipeline(st).Run(ctx, opts)
	if res != nil {
		renderRun(e.stdout, res)
	}
	if err != nil {
		return err
	}
	if !res.Succeeded() {
		return fmt.Errorf("run %s finished with status %s", res.RunID, res.Status)
	}
	return nil
}
