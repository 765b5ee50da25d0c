package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tripwindow/internal/api"
	"tripwindow/internal/db"
	"tripwindow/internal/metrics"
	"tripwindow/internal/publisher"
	"tripwindow/internal/resolve"
	"tripwindow/internal/schedules"
)

func runServe(cmd *cobra.Command, _ []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	logger.Info().Str("env", cfg.Environment).Msg("tripwindow starting")

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sqlDB, err := openDB(ctx)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := db.Migrate(ctx, sqlDB); err != nil {
			return err
		}
	}

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.Policy, cfg.SnapshotInterval)
		msrv := mcol.Serve(cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = msrv.Shutdown(shutdownCtx)
		}()
	}

	store := db.NewStore(sqlDB)
	chain := resolve.ScheduleChain{store, db.NewPowerConfigStore(sqlDB)}
	resolver := resolve.New(chain, store, store,
		resolve.WithPolicy(cfg.Policy),
		resolve.WithLocation(cfg.Location),
		resolve.WithLogger(logger),
		resolve.WithMetrics(wrapResolverMetrics(mcol)),
	)
	matcher := resolve.NewMatcher(store)

	// Schedule notifications are best effort; the API runs without NATS.
	var notifier schedules.Notifier
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol), logger)
		if err != nil {
			logger.Warn().Err(err).Str("url", cfg.NATSURL).Msg("nats unavailable, schedule notifications disabled")
		} else {
			defer pub.Close()
			notifier = pub
		}
	}

	schedOpts := []schedules.Option{
		schedules.WithLocation(cfg.Location),
		schedules.WithLogger(logger),
		schedules.WithNotifier(notifier),
		schedules.WithMetrics(wrapScheduleMetrics(mcol)),
	}
	svc := schedules.NewService(chain, store, store, schedOpts...)
	snapshotter := schedules.NewSnapshotter(store, store, cfg.SnapshotInterval, schedOpts...)
	snapshotter.Start(ctx)
	defer snapshotter.Stop()

	handler := api.New(resolver, matcher, svc, store, logger,
		api.WithPing(func(ctx context.Context) error { return db.Ping(ctx, sqlDB) }),
		api.WithTimeout(cfg.QueryTimeout),
		api.WithMetrics(wrapAPIMetrics(mcol)),
	).Router()
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info().Msg("shutting down gracefully...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("shutdown complete")
	return nil
}
