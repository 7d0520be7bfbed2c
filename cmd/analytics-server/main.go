package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sports-analytics/internal/alerts"
	"sports-analytics/internal/api"
	"sports-analytics/internal/bets"
	"sports-analytics/internal/config"
	"sports-analytics/internal/handlers"
	"sports-analytics/internal/logger"
	"sports-analytics/internal/metrics"
	"sports-analytics/internal/session"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	if err := config.Validate(cfg); err != nil {
		logger.Fatal("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	notifier := alerts.NewNotifier(cfg.AlertCooldown)

	store, closeStore, err := cfg.OpenTokenStore(ctx)
	if err != nil {
		logger.Fatal("Token store: %v", err)
	}
	defer closeStore()

	routes := session.DefaultRoutePolicy()
	if cfg.RoutesFile != "" {
		routes, err = session.LoadRoutePolicy(cfg.RoutesFile)
		if err != nil {
			logger.Fatal("Route policy: %v", err)
		}
	}

	backend := api.NewBackendClient(cfg.Backend())
	ctrl := session.NewController(store, backend, session.Options{
		RefreshLead:    cfg.RefreshLead,
		RequestTimeout: cfg.RequestTimeout,
		Routes:         &routes,
		Metrics:        m,
	})
	if err := ctrl.Start(ctx); err != nil {
		// The controller is Anonymous now; the API still serves calculators.
		notifier.LogError("session startup", err)
	}
	defer ctrl.Close()

	// Data requests carry the session's access token and refresh on 401.
	data := backend.WithDataTransport(ctrl.Transport(nil))

	db, err := bets.NewDB(cfg.DBPath)
	if err != nil {
		logger.Fatal("Bets DB: %v", err)
	}
	defer db.Close()

	h := handlers.NewHandler(ctrl, data, data, db, notifier, m, handlers.Config{
		DefaultBankroll: cfg.DefaultBankroll,
		KellyFraction:   cfg.KellyFraction,
		MinArbProfitPct: cfg.MinArbProfitPct,
		CORSOrigins:     cfg.CORSOrigins,
		Timeout:         30 * time.Second,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      h.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
	}

	notifier.LogStartup(cfg.Summary() + " session=" + ctrl.Snapshot().State.String())

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	cleanupTicker := time.NewTicker(10 * time.Minute)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-sigChan:
			logger.Info("Shutdown signal received, stopping...")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("Shutdown error: %v", err)
			}
			shutdownCancel()
			logger.Info("Server stopped gracefully")
			return

		case <-cleanupTicker.C:
			notifier.CleanupOldAlerts()
		}
	}
}
