package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/dreamcatchered/dreamMail/internal/config"
	"github.com/dreamcatchered/dreamMail/internal/database"
	"github.com/dreamcatchered/dreamMail/internal/directory"
	"github.com/dreamcatchered/dreamMail/internal/formatter"
	"github.com/dreamcatchered/dreamMail/internal/mailbox"
	"github.com/dreamcatchered/dreamMail/internal/parser"
	"github.com/dreamcatchered/dreamMail/internal/resolver"
	"github.com/dreamcatchered/dreamMail/internal/syncer"
	"github.com/dreamcatchered/dreamMail/internal/telegram"
	"github.com/dreamcatchered/dreamMail/internal/web"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting disposable mail bot")

	// Connect to database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations completed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The alias directory owns address rules; critical addresses must
	// resolve to the admin before any mail is ingested.
	dir := directory.New(db, cfg.AdminID, cfg.RootAddress, cfg.AllowedDomains, logger)
	if err := dir.EnsureCriticalAliases(ctx); err != nil {
		logger.Error("failed to ensure critical aliases", "error", err)
		os.Exit(1)
	}

	// Create components
	msgParser := parser.NewMessageParser(logger)
	tgFormatter := formatter.NewTelegramFormatter()
	links := parser.NewLinkExtractor()
	res := resolver.New(dir, cfg.RootAddress, cfg.AdminID)

	bot, err := telegram.NewBot(telegram.BotDeps{
		Config:    cfg,
		DB:        db,
		Directory: dir,
		Formatter: tgFormatter,
		Links:     links,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	openSession := func(ctx context.Context) (syncer.Session, error) {
		return mailbox.Open(mailbox.Config{
			Server:      cfg.IMAPServer,
			Username:    cfg.RootAddress,
			Password:    cfg.Password,
			DialTimeout: cfg.DialTimeout,
		}, logger)
	}
	loop := syncer.New(openSession, db, msgParser, res, bot, syncer.Config{
		PollInterval:   cfg.PollInterval,
		BootstrapLimit: cfg.BootstrapLimit,
		MaxAttempts:    cfg.SyncMaxAttempts,
	}, logger)

	server := web.NewServer(web.ServerDeps{
		Config:    cfg,
		DB:        db,
		Directory: dir,
		Logger:    logger,
	})

	// Setup graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received shutdown signal", "signal", sig)
		logger.Info("shutting down...")

		if err := server.Shutdown(); err != nil {
			logger.Error("failed to stop web server", "error", err)
		}
		cancel()
	}()

	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("mailbox sync stopped", "error", err)
			cancel()
		}
	}()

	go func() {
		if err := server.Listen(); err != nil {
			logger.Error("web server stopped", "error", err)
			cancel()
		}
	}()

	// Start bot
	logger.Info("bot is running, press Ctrl+C to stop")
	bot.Start(ctx)

	logger.Info("bot stopped")
}

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler
	logLevel := parseLevel(level)

	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
			NoColor:    false,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
