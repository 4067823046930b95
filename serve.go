package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/mickamy/pgdot/internal/config"
	"github.com/mickamy/pgdot/internal/logging"
	"github.com/mickamy/pgdot/internal/metrics"
	"github.com/mickamy/pgdot/internal/server"
	"github.com/mickamy/pgdot/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		address  string
		database string
		enable   bool
	)
	defaults := config.Default().Server
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the render API over HTTP",
		Long: `Start an HTTP service that renders posted EXPLAIN documents.

Example:
  pgdot serve --address :8080 --database renders.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Active()
			flags := cmd.Flags()
			if flags.Changed("address") {
				cfg.Server.Address = address
			}
			if flags.Changed("database") {
				cfg.Server.Database = database
			}
			if flags.Changed("metrics") {
				cfg.Server.Metrics = enable
			}

			logger := logging.New(cfg.Log.Level, cmd.ErrOrStderr())
			if a.logLevel != "" {
				logger = logging.New(a.logLevel, cmd.ErrOrStderr())
			}
			logger.Info().Str("version", version).Str("address", cfg.Server.Address).Msg("Starting pgdot server")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := server.Options{
				Logger:       logger,
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
				GraphID:      cfg.Render.GraphID,
				Strict:       cfg.Render.Strict,
			}
			if cfg.Server.Metrics {
				registry := prometheus.NewRegistry()
				registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				opts.Metrics = metrics.NewPrometheusCollector(registry)
			}
			if cfg.Server.Database != "" {
				st, err := store.Open(ctx, cfg.Server.Database)
				if err != nil {
					return err
				}
				defer func() {
					if err := st.Close(); err != nil {
						logger.Error().Err(err).Msg("Failed to close render archive")
					}
				}()
				opts.Store = st
				logger.Info().Str("database", cfg.Server.Database).Msg("Render archive enabled")
			}

			return server.New(opts).ListenAndServe(ctx, cfg.Server.Address, cfg.Server.ReadTimeout, cfg.Server.ShutdownTimeout)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&address, "address", defaults.Address, "HTTP listen address")
	flags.StringVar(&database, "database", defaults.Database, "SQLite path of the render archive; empty disables archiving")
	flags.BoolVar(&enable, "metrics", defaults.Metrics, "Expose Prometheus metrics on /metrics")
	return cmd
}

