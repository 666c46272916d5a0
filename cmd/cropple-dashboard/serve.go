package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/cropple-dashboard/internal/api/http"
	"github.com/i474232898/cropple-dashboard/internal/dashboard"
	"github.com/i474232898/cropple-dashboard/internal/geo"
	"github.com/i474232898/cropple-dashboard/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and refresh mounted dashboards on a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			defer rt.close()
			return serve(cmd.Context(), rt)
		},
	}
}

func serve(parent context.Context, rt *runtime) error {
	cfg, log := rt.cfg, rt.log

	// Scheduler that periodically refreshes every mounted dashboard.
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	registry := dashboard.NewRegistry(rt.deps, sched, cfg.RefreshInterval, cfg.HTTPTimeout*2)
	defer registry.Close()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, f := range cfg.Farms {
		if !f.HasCoordinates() && rt.geocoder != nil && !f.Address.IsZero() {
			located, err := geo.Locate(ctx, rt.geocoder, f)
			if err != nil {
				log.Warn("geocoding failed", zap.String("farmId", f.ID), zap.Error(err))
			} else {
				f = located
			}
		}
		if _, err := registry.Mount(ctx, f); err != nil {
			log.Error("mount failed", zap.String("farmId", f.ID), zap.Error(err))
		}
	}

	app := httpapi.NewApp(httpapi.Deps{
		Registry:   registry,
		Prefetcher: dashboard.NewPrefetcher(rt.deps),
		Archive:    rt.archive,
		Geocoder:   rt.geocoder,
		Logger:     log,
		AccessLog:  true,
	})

	go func() {
		log.Info("http server listening", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn("error during shutdown", zap.Error(err))
	}
	return nil
}
