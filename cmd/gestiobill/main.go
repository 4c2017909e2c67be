package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gestiobillroot "github.com/fjlabrie/gestiobill"
	"github.com/fjlabrie/gestiobill/internal/config"
	"github.com/fjlabrie/gestiobill/internal/handler"
	"github.com/fjlabrie/gestiobill/internal/middleware"
	"github.com/fjlabrie/gestiobill/internal/notifier"
	"github.com/fjlabrie/gestiobill/internal/provider"
	"github.com/fjlabrie/gestiobill/internal/repository"
	"github.com/fjlabrie/gestiobill/internal/service"
	"github.com/robfig/cron"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(gestiobillroot.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize stores
	invoiceStore := repository.NewInvoiceStore(pool)
	accountStore := repository.NewAccountStore(pool)
	agreementStore := repository.NewAgreementStore(pool)
	reminderStore := repository.NewReminderStore(pool)
	webhookStore := repository.NewWebhookStore(pool)

	// Initialize notifier
	var mailer notifier.Notifier = notifier.Disabled{}
	if cfg.MailEnabled {
		smtp, err := notifier.NewSMTP(cfg.MailHost, cfg.MailName, cfg.MailAddress, false)
		if err != nil {
			slog.Error("failed to setup mail", "error", err)
			os.Exit(1)
		}
		mailer = smtp
	}
	dispatcher := notifier.NewDispatcher(mailer, config.NotifyTimeout)

	// Initialize services
	invoiceService := service.NewInvoiceService(invoiceStore, accountStore)
	agreementService := service.NewAgreementService(agreementStore, accountStore, invoiceService, dispatcher, cfg.BaseURL)
	reminderService := service.NewReminderService(reminderStore, invoiceStore, accountStore, mailer)
	webhookLogService := service.NewWebhookLogService(webhookStore)
	reconciler := service.NewReconciler(
		[]provider.Adapter{
			provider.NewStripe(cfg.StripeWebhookSecret),
			provider.NewPayPal(),
			provider.NewHelcim(cfg.HelcimWebhookSecret),
		},
		invoiceService, invoiceStore, accountStore, webhookStore, dispatcher,
		cfg.PayPalReceiverEmail,
	)

	// Rate limit counter with periodic sweep
	limiter := middleware.NewMemoryCounter(time.Minute)
	limiter.StartSweep(ctx, config.RateLimitSweep)

	// Initialize handler
	h := handler.New(handler.Deps{
		Cfg:         cfg,
		DB:          pool,
		Reconciler:  reconciler,
		Agreements:  agreementService,
		Reminders:   reminderService,
		WebhookLogs: webhookLogService,
		Limiter:     limiter,
	})

	// Internal daily reminder scan
	if cfg.ReminderCron != "" {
		c := cron.New()
		err := c.AddFunc(cfg.ReminderCron, func() {
			scanCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			results, err := reminderService.Scan(scanCtx, time.Now().UTC())
			if err != nil {
				slog.Error("reminder scan failed", "error", err)
				return
			}
			slog.Info("reminder scan complete", "results", len(results))
		})
		if err != nil {
			slog.Error("failed to schedule reminder scan", "error", err)
			os.Exit(1)
		}
		c.Start()
		defer c.Stop()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		slog.Info("starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	slog.Info("server stopped gracefully")
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
