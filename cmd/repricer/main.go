package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"

	"github.com/pricefleet/repricer/internal/api"
	"github.com/pricefleet/repricer/internal/config"
	"github.com/pricefleet/repricer/internal/dispatch"
	"github.com/pricefleet/repricer/internal/events"
	"github.com/pricefleet/repricer/internal/notify"
	"github.com/pricefleet/repricer/internal/platform"
	"github.com/pricefleet/repricer/internal/proposal"
	"github.com/pricefleet/repricer/internal/rate"
	"github.com/pricefleet/repricer/internal/store"
	"github.com/pricefleet/repricer/pkg/logger"
	"github.com/pricefleet/repricer/pkg/model"
	"github.com/pricefleet/repricer/pkg/secrets"
	"github.com/pricefleet/repricer/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Info("starting [repricer]...")
	logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))

	// --- AWS Secrets Manager provider (platform API credentials) ---
	awsProvider, err := secrets.NewAWSProvider(cfg.AWSRegion)
	if err != nil {
		logg.Warnw("failed to create AWS Secrets Manager provider; relying on env credentials", "error", err)
		awsProvider = nil
	}

	credsCache := secrets.NewCache[platform.Credentials](cfg.CacheTTL)
	stopCleaner := make(chan struct{})
	go credsCache.StartCleaner(cfg.CleanupFreq, stopCleaner)

	credsResolver := platform.NewSecretsResolver(
		logg.Desugar(),
		cfg.Env,
		awsProvider,
		credsCache,
	)

	// --- Connect to NATS ---
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		logg.Fatalw("failed to connect to NATS", "error", err)
	}

	// --- Change-feed publisher ---
	pub, err := events.New(nc, cfg.ServiceName)
	if err != nil {
		logg.Fatalw("failed to init change-feed publisher", "error", err)
	}

	// --- Store (Redis cache + Postgres) ---
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, cfg.ProposalCacheTTL, cfg.FloorCacheTTL, logg.Desugar())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}

	// --- Proposal lifecycle service ---
	svc := proposal.NewService(logg.Desugar(), st, pub, model.ParsePlatform(cfg.DefaultPlatform))

	// --- Platform adapters ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: 4, // Shopify REST admin is the tightest of the three
		Burst:             8,
		Cooldown:          1 * time.Second,
	})
	registry := platform.NewRegistry(
		platform.NewShopify(logg.Desugar(), rateMgr, credsResolver),
		platform.NewNetSuite(logg.Desugar(), rateMgr, credsResolver),
		platform.NewZoey(logg.Desugar(), rateMgr, credsResolver),
	)

	// --- Propagation dispatcher ---
	dispatcher := dispatch.New(
		logg.Desugar(),
		st,
		svc,
		registry,
		cfg.DispatchWorkers,
		cfg.AdapterTimeout,
		cfg.DispatchInterval,
	)
	dispatcher.Start(ctx)

	// --- Change notifier (SES) ---
	var notifier *notify.Notifier
	if len(cfg.ApprovalEmails) > 0 {
		sender, err := notify.NewSESSender(cfg.AWSRegion, cfg.SenderEmail)
		if err != nil {
			logg.Warnw("failed to init SES sender; notifications disabled", "error", err)
		} else {
			notifier = notify.New(logg.Desugar(), sender, cfg.ApprovalEmails)
			if err := notifier.Start(nc); err != nil {
				logg.Warnw("failed to start change notifier", "error", err)
				notifier = nil
			}
		}
	} else {
		logg.Warn("APPROVAL_EMAIL_LIST not configured; change notifications disabled")
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BodyLimit:    cfg.HTTPBodyLimit,
	})

	handler := api.NewHandler(logg.Desugar(), svc, dispatcher)
	api.RegisterRoutes(app, nc, st, handler)

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	logg.Infow("[repricer] running",
		"nats", cfg.NATSURL,
		"env", cfg.Env,
		"platforms", registry.Platforms(),
		"dispatch_interval", cfg.DispatchInterval)

	<-ctx.Done()
	logg.Info("shutting down [repricer]...")

	close(stopCleaner)
	dispatcher.Stop()
	if notifier != nil {
		notifier.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	if err := nc.Drain(); err != nil {
		logg.Warnw("nats.drain_failed", "error", err)
	}
	if err := st.Close(); err != nil {
		logg.Warnw("store.close_failed", "error", err)
	}
}
