package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/creature-etl/internal/pipeline"
	"github.com/JonMunkholm/creature-etl/internal/web"
)

func newServeCommand(e *env) *cobra.Command {
	var (
		addr       string
		etlOnStart bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API",
		Long: `
Serves the creature query API and the ETL endpoints. Without a database the
query endpoints answer 503 and only file sinks can be written.
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = e.cfg.Server.Addr()
			}
			if !cmd.Flags().Changed("etl-on-start") {
				etlOnStart = e.cfg.Server.ETLOnStart
			}
			return e.serve(cmd.Context(), addr, etlOnStart)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default SERVER_HOST:SERVER_PORT)")
	cmd.Flags().BoolVar(&etlOnStart, "etl-on-start", false, "run the pipeline once before serving")
	return cmd
}

func (e *env) serve(ctx context.Context, addr string, etlOnStart bool) error {
	st, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	var repo web.Repository
	if st != nil {
		repo = st
	}
	p := e.newPipeline(st)
	server := web.NewServer(e.cfg, p, repo, e.logger)

	if etlOnStart {
		// A failed startup run is logged but does not keep the API down.
		if res, err := p.Run(ctx, pipeline.RunOptions{}); err != nil {
			e.logger.Error("startup run failed", "error", err)
		} else {
			e.logger.Info("startup run finished", "run_id", res.RunID, "status", res.Status)
		}
	}

	// Graceful shutdown
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigCtx.Done()
		e.logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := server.Limiter().Status(); status.Active > 0 {
			e.logger.Info("waiting for runs to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			e.logger.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(addr); err != nil {
		stop()
		<-done
		return err
	}
	<-done
	return nil
}
