package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/config"
	"fintrack/internal/feed"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/quotes"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     log.ParseLevel(os.Getenv("LOG_LEVEL")),
		Component: log.ComponentApp,
	})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// AMQP is optional for the API process. Without it, mails and
	// transaction events are skipped but every endpoint still works.
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPMailQueue, cfg.AMQPEventQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, mail and event publishing disabled", log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	}

	feedHub := feed.NewHub(repo)
	defer feedHub.Close()

	sessionHub := auth.NewSessionHub()
	defer sessionHub.Close()

	var mailer auth.Mailer
	if amqpClient != nil {
		mailer = amqpClient
	}
	authSvc := auth.NewService(repo, mailer, sessionHub, cfg.JWTSecret, cfg.SessionTTL)
	if cfg.GoogleLoginEnabled {
		authSvc.RegisterVerifier("google", auth.GoogleVerifier{})
	}
	if cfg.GitHubLoginEnabled {
		authSvc.RegisterVerifier("github", auth.NewGitHubVerifier())
	}

	txSvc := services.NewTransactionService(repo, feedHub, amqpClient)
	quoteClient := quotes.NewClient(cfg.CurrencyQuoteURL, cfg.IndexQuoteURL, cfg.BrapiToken)

	srv := apphttp.NewServer(":"+cfg.Port, authSvc, txSvc, feedHub, quoteClient)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	cacheManager := cache.NewManager()
	cacheManager.Register(srv.SummaryCache())
	cacheManager.StartCleanup(5 * time.Minute)
	defer cacheManager.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logged-out users must not keep receiving feed snapshots.
	events, unsubscribe := sessionHub.Subscribe()
	defer unsubscribe()
	go func() {
		for evt := range events {
			if evt.Type == auth.SessionLogout {
				feedHub.DropOwner(evt.UserID)
			}
		}
	}()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting fintrack server", "port", cfg.Port, "amqp_enabled", amqpClient != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
