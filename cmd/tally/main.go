package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/colefenn/tally/internal/database"
	"github.com/colefenn/tally/internal/engine"
	"github.com/colefenn/tally/internal/logging"
	"github.com/colefenn/tally/internal/photo"
	"github.com/colefenn/tally/internal/server"
)

func main() {
	godotenv.Load()

	logger := logging.Setup(os.Getenv("TALLY_LOG_LEVEL"))

	port := os.Getenv("TALLY_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("TALLY_DB_PATH")
	if dbPath == "" {
		dbPath = "tally.db"
	}

	photoDir := os.Getenv("TALLY_PHOTO_DIR")
	if photoDir == "" {
		photoDir = "photos"
	}

	sweepInterval := time.Hour
	if v := os.Getenv("TALLY_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid TALLY_SWEEP_INTERVAL", "value", v, "error", err)
			os.Exit(1)
		}
		sweepInterval = d
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	photos, err := photo.NewStore(photoDir)
	if err != nil {
		slog.Error("failed to open photo store", "error", err)
		os.Exit(1)
	}

	srv := server.New(db, photos, logger)

	// Dispute sweeper resolves expired dispute windows in the background.
	sweeper := engine.NewSweeper(srv.Engine(), srv.Hub(), sweepInterval, logger.With("component", "sweeper"))
	sweeper.Start(context.Background())

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					slog.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					slog.Info("cleaned up expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("tally starting", "addr", ":"+port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	sweeper.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
