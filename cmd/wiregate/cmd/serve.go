package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sentinel-Gate/wiregate/internal/adapter/outbound/accesslog"
	"github.com/Sentinel-Gate/wiregate/internal/config"
	"github.com/Sentinel-Gate/wiregate/internal/service"
	"github.com/Sentinel-Gate/wiregate/internal/telemetry"
	"github.com/Sentinel-Gate/wiregate/pkg/http1"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	Long: `Start the wiregate server on server.http_addr and mount the configured
routes. The server runs until SIGINT or SIGTERM (or "wiregate stop"), then
drains its workers within server.stop_timeout.

Examples:
  # Start with config file settings
  wiregate serve

  # Development mode: debug logging and an echo route when none is configured
  wiregate serve --dev

  # Start with a specific config file
  wiregate --config /path/to/wiregate.yaml serve`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (debug logging, default echo route)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load without validation so CLI flags can override first
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	go func() {
		<-ctx.Done()
		stop()
	}()

	logger := newLogger(os.Stderr, cfg.Server.LogLevel, cfg.DevMode)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	pidPath := pidFilePath(cfg.Server.PIDFile)
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := serve(ctx, cfg, logger, os.Stdout, nil); err != nil {
		return err
	}
	logger.Info("wiregate stopped")
	return nil
}

// serve runs the site until ctx is done. ready, if set, receives the
// listening address once the server accepts connections.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, traceOut io.Writer, ready func(addr string)) error {
	tp, err := telemetry.NewTracerProvider(cfg.Telemetry.Tracing, traceOut, Version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	stats := service.NewStatsService()
	recorders := service.Recorders{stats}
	store, err := accesslog.Open(accesslog.Config{
		Output:        cfg.AccessLog.Output,
		RetentionDays: cfg.AccessLog.RetentionDays,
		MaxFileSizeMB: cfg.AccessLog.MaxFileSizeMB,
		CacheSize:     cfg.AccessLog.CacheSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("open access log: %w", err)
	}
	if store != nil {
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("access log close failed", "error", err)
			}
		}()
		recorders = append(recorders, store)
	}

	opts := []http1.ServerOption{
		http1.WithLogger(logger),
		http1.WithRecorder(recorders),
		http1.WithTracer(tp.Tracer()),
	}
	reg := prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, http1.WithMetrics(http1.NewMetrics(reg)))
	}

	srv, err := http1.NewServer(cfg.Server.HTTPAddr, cfg.Server.Workers, cfg.Server.RequestWaitDuration(), opts...)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Free() }()

	site, err := service.NewSiteService(logger, service.WithVersion(Version), service.WithStats(stats))
	if err != nil {
		return err
	}
	if err := site.Mount(srv, cfg); err != nil {
		return err
	}
	if err := srv.Start(cfg.Server.StartTimeoutDuration()); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	logger.Info("wiregate listening", "addr", srv.Addr().String(), "workers", cfg.Server.Workers, "routes", len(srv.Paths()))

	g, gctx := errgroup.WithContext(ctx)

	var metricsSrv *stdhttp.Server
	if cfg.Metrics.Enabled {
		mux := stdhttp.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsSrv = &stdhttp.Server{
			Addr:              cfg.Metrics.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.Metrics.HTTPAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	if ready != nil {
		ready(srv.Addr().String())
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		if metricsSrv != nil {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = metricsSrv.Shutdown(sctx)
			cancel()
		}
		if err := srv.Stop(cfg.Server.StopTimeoutDuration()); err != nil {
			return fmt.Errorf("stop server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
