package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/herbtrace/pkg/config"
	"github.com/ekaya-inc/herbtrace/pkg/database"
	"github.com/ekaya-inc/herbtrace/pkg/handlers"
	"github.com/ekaya-inc/herbtrace/pkg/middleware"
	"github.com/ekaya-inc/herbtrace/pkg/observability"
)

const shutdownTimeout = 15 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	SkipMigrations bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API and provenance pages.

Pending migrations are applied before the listener starts unless
--skip-migrations is given. SIGINT or SIGTERM drains in-flight requests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipMigrations, "skip-migrations", false, "do not apply pending migrations at startup")
	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)),
		zap.Bool("quality_terminal_lock", cfg.Quality.TerminalLock))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !opts.SkipMigrations {
		if err := migrateUp(cfg, logger); err != nil {
			return err
		}
	}

	db, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	var (
		metrics *observability.Metrics
		reg     *prometheus.Registry
	)
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = observability.NewMetrics(reg)
	}

	a, err := newApp(cfg, db, metrics, logger)
	if err != nil {
		return err
	}

	mux := newMux(cfg, a, logger)
	servers := []*http.Server{{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger, metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}}

	if reg != nil {
		metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
		if cfg.Metrics.Port == "" {
			mux.Handle("GET /metrics", metricsHandler)
		} else {
			metricsMux := http.NewServeMux()
			metricsMux.Handle("GET /metrics", metricsHandler)
			servers = append(servers, &http.Server{
				Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Metrics.Port),
				Handler:           metricsMux,
				ReadHeaderTimeout: 10 * time.Second,
			})
		}
	}

	return serveAll(ctx, servers, logger)
}

// newMux registers every API route. Routes touching the database run
// inside a per-request connection scope.
func newMux(cfg *config.Config, a *app, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	scope := database.WithScopeContext(a.db, logger)

	handlers.NewHealthHandler(cfg, a.db, logger).RegisterRoutes(mux)
	handlers.NewCollectionsHandler(a.collection, a.registry, logger).RegisterRoutes(mux, scope)
	handlers.NewBatchesHandler(a.batches, logger).RegisterRoutes(mux, scope)
	handlers.NewProcessingHandler(a.processing, logger).RegisterRoutes(mux, scope)
	handlers.NewQualityHandler(a.quality, logger).RegisterRoutes(mux, scope)
	handlers.NewProvenanceHandler(a.provenance, a.dashboard, logger).RegisterRoutes(mux, scope)

	return mux
}

// serveAll runs the servers until ctx is cancelled or one of them fails,
// then shuts all of them down.
func serveAll(ctx context.Context, servers []*http.Server, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		g.Go(func() error {
			logger.Info("Listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("failed to shut down %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
