package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	billingstripe "github.com/hashboard/hashboard/internal/billing/stripe"
	"github.com/hashboard/hashboard/internal/database"
	"github.com/hashboard/hashboard/internal/dataset"
	"github.com/hashboard/hashboard/internal/email"
	"github.com/hashboard/hashboard/internal/logging"
	"github.com/hashboard/hashboard/internal/server"
)

func main() {
	// Missing .env is fine; real deployments set the environment directly.
	godotenv.Load()

	logger := logging.Setup(os.Getenv("HASHBOARD_LOG_LEVEL"))

	port := os.Getenv("HASHBOARD_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("HASHBOARD_DB_PATH")
	if dbPath == "" {
		dbPath = "hashboard.db"
	}

	baseURL := os.Getenv("HASHBOARD_BASE_URL")
	if baseURL == "" {
		baseURL = fmt.Sprintf("http://localhost:%s", port)
	}

	tokenSecret := os.Getenv("HASHBOARD_TOKEN_SECRET")
	if tokenSecret == "" {
		slog.Warn("HASHBOARD_TOKEN_SECRET not set, remember-me tokens disabled")
	}

	db, err := database.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(
		os.Getenv("HASHBOARD_POSTMARK_TOKEN"),
		os.Getenv("HASHBOARD_FROM_EMAIL"),
		baseURL,
	)

	cfg := server.Config{
		BaseURL:     baseURL,
		TokenSecret: []byte(tokenSecret),
		Stripe: billingstripe.Config{
			SecretKey:  os.Getenv("STRIPE_SECRET_KEY"),
			SuccessURL: baseURL + "/billing/return?session_id={CHECKOUT_SESSION_ID}&status=success",
			CancelURL:  baseURL + "/billing/return?status=cancelled",
		},
		EmailClient: emailClient,
		Dataset: dataset.Config{
			URLs: map[dataset.Series]string{
				dataset.SeriesHashrate:  os.Getenv("HASHBOARD_HASHRATE_CSV_URL"),
				dataset.SeriesPrice:     os.Getenv("HASHBOARD_PRICE_CSV_URL"),
				dataset.SeriesVolume:    os.Getenv("HASHBOARD_VOLUME_CSV_URL"),
				dataset.SeriesMarketCap: os.Getenv("HASHBOARD_MARKETCAP_CSV_URL"),
			},
			Premium: map[dataset.Series]bool{
				dataset.SeriesVolume:    true,
				dataset.SeriesMarketCap: true,
			},
		},
	}

	srv := server.New(db, cfg, logger)

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
				if n, err := srv.ResetTokenStore().DeleteExpired(); err != nil {
					slog.Error("cleanup expired reset tokens", "error", err)
				} else if n > 0 {
					slog.Info("cleaned up expired reset tokens", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("hashboard starting", "addr", ":"+port)
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
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
