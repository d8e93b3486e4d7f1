package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/formloft/formloft/internal/config"
	"github.com/formloft/formloft/internal/mailer"
	"github.com/formloft/formloft/internal/openai"
	"github.com/formloft/formloft/internal/server"
	"github.com/formloft/formloft/internal/spam"
	"github.com/formloft/formloft/internal/storage/sqlite"
	"github.com/formloft/formloft/internal/submit"
	"github.com/formloft/formloft/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdown, err := telemetry.InitTracer("formloft", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLite.Path), 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	store, err := sqlite.New(cfg.Storage.SQLite.Path)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	m, err := buildMailer(cfg)
	if err != nil {
		log.Fatalf("Failed to configure mailer: %v", err)
	}

	checkerOpts := []spam.CheckerOption{
		spam.WithModel(cfg.Spam.Model),
		spam.WithTimeout(cfg.SpamTimeout()),
	}
	var verifierOpts []openai.ClientOption
	if cfg.Spam.BaseURL != "" {
		checkerOpts = append(checkerOpts, spam.WithBaseURL(cfg.Spam.BaseURL))
		verifierOpts = append(verifierOpts, openai.WithBaseURL(cfg.Spam.BaseURL))
	}
	checker := spam.NewOpenAIChecker(logger, checkerOpts...)

	limits := submit.Limits{
		MaxBytes:    cfg.Limits.MaxBytes,
		MaxFields:   cfg.Limits.MaxFields,
		MaxFieldLen: cfg.Limits.MaxFieldLen,
		MaxNameLen:  cfg.Limits.MaxNameLen,
		Honeypots:   cfg.Limits.Honeypots,
	}
	handler := submit.NewHandler(store, checker, m, limits, logger)

	srv := server.New(server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.RequestTimeout(),
		SubmitRate:     rate.Limit(cfg.Limits.Rate),
		SubmitBurst:    cfg.Limits.Burst,
	}, logger, handler, server.OpenAIKeyVerifier(verifierOpts...))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func buildMailer(cfg *config.Config) (mailer.Mailer, error) {
	switch cfg.Mail.Provider {
	case "smtp":
		if cfg.Mail.SMTP.Host == "" {
			return nil, errors.New("mail.smtp.host is required")
		}
		return mailer.NewSMTP(cfg.Mail.SMTP.Host, cfg.Mail.SMTP.Port, cfg.Mail.From), nil
	case "mailgun":
		if cfg.Mail.Mailgun.APIKey == "" || cfg.Mail.Mailgun.Domain == "" {
			return nil, errors.New("mail.mailgun.api_key and mail.mailgun.domain are required")
		}
		return mailer.NewMailgun(cfg.Mail.Mailgun.APIKey, cfg.Mail.Mailgun.Domain, cfg.Mail.From, nil), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Mail.Provider)
	}
}
