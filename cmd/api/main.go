package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutor-ledger/config"
	"tutor-ledger/docs"
	httpHandler "tutor-ledger/internal/adapter/http/handler"
	"tutor-ledger/internal/adapter/mail"
	pgStorage "tutor-ledger/internal/adapter/storage/postgres"
	redisStorage "tutor-ledger/internal/adapter/storage/redis"
	"tutor-ledger/internal/core/ports"
	"tutor-ledger/internal/service"
	"tutor-ledger/internal/worker"
	"tutor-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Tutor Ledger")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Repositories
	earningsRepo := pgStorage.NewEarningsRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	payoutRepo := pgStorage.NewPayoutRepo(pool)
	methodRepo := pgStorage.NewPaymentMethodRepo(pool)
	settingsRepo := pgStorage.NewSettingsRepo(pool)
	notificationRepo := pgStorage.NewNotificationRepo(pool)
	contactRepo := pgStorage.NewContactRepo(pool)
	webhookEventRepo := pgStorage.NewWebhookEventRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool, cfg.Database.LockTimeout)

	// Redis stores
	syncQueue := redisStorage.NewJobQueue(rdb, cfg.Sync.Queue)
	nonceStore := redisStorage.NewNonceStore(rdb, "")
	tokenCache := redisStorage.NewTokenCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Webhook verification
	paypalClient := service.NewPayPalClient(
		cfg.Webhooks.PayPal.BaseURL,
		cfg.Webhooks.PayPal.ClientID,
		cfg.Webhooks.PayPal.ClientSecret,
		&http.Client{Timeout: cfg.Webhooks.PayPal.Timeout},
		tokenCache,
		logger.Component(log, "paypal"),
	)
	gate := service.NewWebhookGate(logger.Component(log, "webhook"),
		service.NewPaystackVerifier(cfg.Webhooks.Paystack.Secret),
		service.NewStripeVerifier(cfg.Webhooks.Stripe.Secret, cfg.Webhooks.Stripe.Tolerance),
		service.NewPayPalVerifier(paypalClient, cfg.Webhooks.PayPal.WebhookID, cfg.Webhooks.PayPal.Timeout),
	)

	// Core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))

	var mailer ports.Mailer
	if cfg.Mail.SendGridKey != "" {
		mailer = mail.NewSendGridMailer(cfg.Mail.SendGridKey, cfg.Mail.FromName, cfg.Mail.FromEmail)
	} else {
		log.Warn().Msg("SendGrid key not set, email notifications disabled")
	}
	notifier := service.NewNotificationService(notificationRepo, contactRepo, mailer, logger.Component(log, "notify"))

	syncSvc := service.NewSyncService(earningsRepo, walletRepo, transactor, syncQueue, logger.Component(log, "sync"))
	payoutSvc := service.NewPayoutService(
		earningsRepo,
		payoutRepo,
		methodRepo,
		settingsRepo,
		encSvc,
		transactor,
		syncSvc,
		notifier,
		service.PayoutOptions{
			ActorType:        cfg.Payout.ActorType,
			Currency:         cfg.Payout.Currency,
			ThresholdKey:     cfg.Payout.ThresholdKey,
			DefaultThreshold: cfg.Payout.DefaultThreshold,
			Concurrency:      cfg.Payout.Concurrency,
		},
		logger.Component(log, "payout"),
	)
	ledgerSvc := service.NewLedgerService(earningsRepo, walletRepo, payoutRepo, transactor, syncSvc, notifier, cfg.Payout.Currency, logger.Component(log, "ledger"))

	// Background workers
	syncWorker := worker.NewSyncWorker(syncQueue, syncSvc, worker.SyncWorkerOptions{
		MaxAttempts:  cfg.Sync.MaxAttempts,
		PollInterval: cfg.Sync.PollInterval,
	}, logger.Component(log, "sync-worker"))
	scheduler, err := worker.NewScheduler(cfg.Payout.Schedule, payoutSvc, cfg.Payout.RunTimeout, logger.Component(log, "scheduler"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize payout scheduler")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WebhookGate:    gate,
		NonceStore:     nonceStore,
		WebhookEvents:  webhookEventRepo,
		WebhookTTL:     cfg.Webhooks.EventTTL,
		PayoutSvc:      payoutSvc,
		LedgerSvc:      ledgerSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		SyncQueue:      syncQueue,
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		AuditSvc:       auditSvc,
		OpenAPISpec:    docs.OpenAPI,
		Logger:         log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return syncWorker.Run(gctx) })
	g.Go(func() error { return scheduler.Run(gctx) })

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Service stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited")
}
