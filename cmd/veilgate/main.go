package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/veilgate/veilgate/internal/auth"
	"github.com/veilgate/veilgate/internal/bot"
	"github.com/veilgate/veilgate/internal/config"
	"github.com/veilgate/veilgate/internal/flags"
	"github.com/veilgate/veilgate/internal/payment"
	"github.com/veilgate/veilgate/internal/rotation"
	"github.com/veilgate/veilgate/internal/server"
	"github.com/veilgate/veilgate/internal/store/postgres"
	redisstore "github.com/veilgate/veilgate/internal/store/redis"
	"github.com/veilgate/veilgate/internal/wallet"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("VEILGATE_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("VEILGATE_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL and apply migrations.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	// Connect to Redis for the shared flag cache.
	cache, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Flags.CacheTTL)
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	// Services.
	authSvc := auth.NewService(store.Users(), cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	resolver := flags.NewResolver(store.Flags(), cache, cfg.Flags.CacheTTL)
	selector := rotation.NewSelector(store.Cards(), resolver)
	wallets := wallet.NewService(store.Ledger(), store.BotUsers(), resolver)

	// Outbound clients.
	tgAPI := bot.NewBotAPI(cfg.Telegram.APIBaseURL, cfg.Telegram.Timeout)
	gateway := payment.NewHTTPGateway(cfg.Payment.Provider, cfg.Payment.GatewayBaseURL, cfg.Payment.Timeout)

	notifier := bot.NewNotifier(tgAPI, store.Tenants(), store.BotUsers())
	provisioner := bot.NewProvisioner(tgAPI, store.Tenants(), store.BotUsers(), wallets)
	payments := payment.NewService(store.Receipts(), resolver, gateway, notifier, provisioner, selector, cfg.Payment.CallbackBase)

	webhook := bot.NewWebhookHandler(store.Tenants(), store.BotUsers(), wallets, payments, selector, resolver, tgAPI)
	callback := payment.NewCallbackHandler(payments)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Background loops: flag-cache invalidation fan-in and provisioning
	// reconciliation.
	go func() {
		if startErr := resolver.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("flag resolver stopped")
		}
	}()
	go payments.RunReconciler(ctx, cfg.Flags.ReconcileInterval)

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, server.Deps{
		Store:    store,
		Auth:     authSvc,
		Flags:    resolver,
		Payments: payments,
		Wallets:  wallets,
		Selector: selector,
		Webhook:  webhook,
		Callback: callback,
	})

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
