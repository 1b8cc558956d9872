package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/daybook/internal/config"
	"github.com/dukerupert/daybook/internal/database"
	"github.com/dukerupert/daybook/internal/logging"
	"github.com/dukerupert/daybook/internal/push"
	"github.com/dukerupert/daybook/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	pushClient := push.NewClient(
		push.WithURL(cfg.ExpoURL),
		push.WithAccessToken(cfg.ExpoToken),
	)

	srv, err := server.New(db, cfg, pushClient, logger)
	if err != nil {
		slog.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// In-process sweep trigger; without a schedule the external cron route
	// is the only trigger.
	if cfg.SweepSchedule != "" {
		if err := srv.Scheduler().Start(bgCtx, cfg.SweepSchedule); err != nil {
			slog.Error("failed to start sweep trigger", "error", err)
			os.Exit(1)
		}
	}

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup(30 * time.Minute)
			case <-bgCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("daybook starting", "addr", ":"+cfg.Port, "tz", cfg.Location.String())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	bgCancel()
	srv.Scheduler().Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
