package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/csvstore/internal/config"
	"github.com/JonMunkholm/csvstore/internal/core"
	"github.com/JonMunkholm/csvstore/internal/store"
	"github.com/JonMunkholm/csvstore/internal/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), a.cfg)
		},
	}
}

// serve runs the API until ctx is cancelled, then drains in-flight requests
// and uploads within the shutdown timeout.
func serve(ctx context.Context, cfg *config.Config) error {
	repo, err := store.Open(ctx, cfg.Database, cfg.Storage)
	if err != nil {
		return err
	}
	defer repo.Close()

	if cfg.Database.MigrateOnStart {
		if err := repo.Migrate(ctx); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := core.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if err := repo.RegisterMetrics(registry); err != nil {
		return fmt.Errorf("register store metrics: %w", err)
	}

	limiter := core.NewIngestLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	ingester := core.NewIngestService(repo, core.IngestOptions{
		MaxFileSize: cfg.Upload.MaxFileSize,
		Timeout:     cfg.Upload.Timeout,
		Limiter:     limiter,
		Metrics:     metrics,
	})
	browser := core.NewQueryService(repo, core.PageParams{
		DefaultLimit: cfg.Query.DefaultPageSize,
		MaxLimit:     cfg.Query.MaxPageSize,
	}, metrics)

	server := web.NewServer(cfg, ingester, browser, registry)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		if n := limiter.ActiveCount(); n > 0 {
			slog.Info("waiting for uploads to complete", "active", n)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("uploads did not complete in time", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
