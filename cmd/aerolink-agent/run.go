package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/aerolink-systems/aerolink-agent/internal/config"
	"github.com/aerolink-systems/aerolink-agent/internal/correlation"
	"github.com/aerolink-systems/aerolink-agent/internal/delivery"
	"github.com/aerolink-systems/aerolink-agent/internal/logging"
	"github.com/aerolink-systems/aerolink-agent/internal/reader"
	"github.com/aerolink-systems/aerolink-agent/internal/repository"
	"github.com/aerolink-systems/aerolink-agent/internal/server"
	"github.com/aerolink-systems/aerolink-agent/internal/status"
	"github.com/aerolink-systems/aerolink-agent/internal/timesync"
)

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Run the telemetry pipeline",
	Long:         `Starts the stream reader, correlation engine, delivery engine, status reporter, and ops HTTP server, and runs until SIGINT/SIGTERM.`,
	RunE:         runAgent,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.New(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	).With(logging.Service("aerolink-agent"))
	logging.SetDefault(logger)

	logger.Info("starting aerolink-agent",
		slog.Int("client_id", cfg.App.ClientID),
		slog.String("delivery_url", cfg.Delivery.URL),
		slog.String("decoder", fmt.Sprintf("%s:%d", cfg.Decoder.Host, cfg.Decoder.Port)))

	if err := migrateUp(cfg, logger); err != nil {
		return err
	}

	// The pipeline clock: wall time plus the configured correction,
	// optionally refined against the remote time source below. The
	// host clock is never modified.
	clock := timesync.NewClock(cfg.App.ClockOffset)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TimeSync.URL != "" {
		syncer := timesync.NewSyncer(clock, cfg.TimeSync.URL, cfg.TimeSync.Interval, cfg.TimeSync.Threshold, logger)
		if cfg.TimeSync.Interval > 0 {
			go syncer.Run(ctx)
		} else {
			// Single startup probe, before any event is stamped.
			syncer.Run(ctx)
		}
	}

	openCtx, openCancel := context.WithTimeout(ctx, 10*time.Second)
	store, err := repository.New(openCtx, cfg.Database.URL(), clock.Now)
	openCancel()
	if err != nil {
		return fmt.Errorf("failed to connect to store: %w", err)
	}
	defer store.Close()

	rdr := reader.New(reader.Config{
		Host:           cfg.Decoder.Host,
		Port:           cfg.Decoder.Port,
		ConnectTimeout: cfg.Decoder.ConnectTimeout,
		ReconnectDelay: cfg.Decoder.ReconnectDelay,
		BufferLimit:    cfg.Reader.BufferLimit,
		FlushInterval:  cfg.Reader.FlushInterval,
	}, store, store, clock.Now, logger)

	corr := correlation.New(store, store, cfg.Correlation.Interval, clock.Now, logger)

	signer := delivery.NewSigner(cfg.Delivery.SecretKey)
	client := delivery.NewClient(cfg.Delivery.URL, cfg.Delivery.BearerToken, signer, cfg.Delivery.Timeout)
	deliv := delivery.New(store, client, store, delivery.Config{
		ClientID:   cfg.App.ClientID,
		BatchSize:  cfg.Delivery.BatchSize,
		Interval:   cfg.Delivery.Interval,
		RetryDelay: cfg.Delivery.RetryDelay,
	}, logger)

	registry := status.NewRegistry()
	registry.Register("reader", func() any { return rdr.Stats() })
	registry.Register("correlation", func() any { return corr.Stats() })
	registry.Register("delivery", func() any { return deliv.Stats() })
	registry.Register("clock", func() any {
		return map[string]float64{"offset_seconds": clock.Offset().Seconds()}
	})

	var wg sync.WaitGroup
	run := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(ctx)
		}()
	}
	run(rdr.Run)
	run(corr.Run)
	run(deliv.Run)

	if cfg.Status.URL != "" {
		reporter := status.NewReporter(registry, signer, status.Config{
			ClientID:    cfg.App.ClientID,
			Version:     version,
			URL:         cfg.Status.URL,
			Interval:    cfg.Status.Interval,
			BearerToken: cfg.Delivery.BearerToken,
		}, clock.Now, logger)
		run(reporter.Run)
	}

	handler := server.NewHandler(store, registry, cfg.App.ClientID, version, clock.Now)
	srv := server.New(cfg.Server, server.NewRouter(handler))
	go func() {
		logger.Info("ops server listening", logging.Endpoint(srv.Addr))
		// The ops surface is observational; losing it must not stop
		// the pipeline.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server failed", logging.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")
	cancel()
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server forced to shutdown", logging.Error(err))
	}

	logger.Info("aerolink-agent stopped")
	return nil
}

// migrateUp applies pending migrations; an already-current schema is
// not an error.
func migrateUp(cfg *config.Config, logger *logging.Logger) error {
	m, err := migrate.New("file://"+cfg.Database.Migrations, cfg.Database.URL())
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("database migrations applied")
	return nil
}
