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

	"leadflow_backend/internal/events"
	apphttp "leadflow_backend/internal/http"
	"leadflow_backend/internal/http/router"
	"leadflow_backend/internal/leads"
	"leadflow_backend/internal/leads/repository"
	"leadflow_backend/internal/leads/rules"
	"leadflow_backend/internal/leads/touch"
	"leadflow_backend/internal/ops"
	"leadflow_backend/internal/scheduler"
	"leadflow_backend/internal/webhook"
	"leadflow_backend/internal/webhook/dedup"
	"leadflow_backend/migrations"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/db"
	"leadflow_backend/platform/logger"
	"leadflow_backend/platform/sealer"
	"leadflow_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, log)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	defaults, err := rules.LoadDefaultsFile(cfg.GetRulesDefaultsFile())
	if err != nil {
		log.Error("failed to load rule defaults", "error", err, "file", cfg.GetRulesDefaultsFile())
		panic("failed to load rule defaults: " + err.Error())
	}
	repo := repository.New(pool)
	repo.SetRuleDefaults(defaults)

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)
	events.RegisterLifecycleSubscribers(eventBus, log)

	bodySealer, err := newSealer(cfg, log)
	if err != nil {
		log.Error("failed to initialize body sealer", "error", err)
		panic("failed to initialize body sealer: " + err.Error())
	}

	filter, closeRedis := initDedupFilter(cfg, log)
	if closeRedis != nil {
		defer closeRedis()
	}

	trigger, closeTrigger := initTrigger(cfg, log)
	if closeTrigger != nil {
		defer closeTrigger()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules
	// ========================================================================

	leadsModule := leads.NewModule(repo, eventBus, val)
	webhookModule := webhook.NewModule(repo, bodySealer, filter, eventBus, val, cfg, log)
	opsModule := ops.NewModule(trigger, cfg, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			webhookModule,
			opsModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func newSealer(cfg config.CryptoConfig, log *logger.Logger) (*sealer.Sealer, error) {
	if key := cfg.GetBodyEncryptionKey(); key != nil {
		return sealer.New(key)
	}
	log.Warn("BODY_ENCRYPTION_KEY_BASE64 not configured; sealing bodies with an ephemeral key")
	return sealer.NewEphemeral()
}

// initDedupFilter returns nil when Redis is not configured; the database
// unique indexes still deduplicate every delivery.
func initDedupFilter(cfg *config.Config, log *logger.Logger) (touch.Filter, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; webhook dedup cache disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL; webhook dedup cache disabled", "error", err)
		return nil, nil
	}
	rdb := redis.NewClient(opt)

	return dedup.NewFilter(rdb, cfg.GetWebhookDedupTTL()), func() {
		_ = rdb.Close()
	}
}

func initTrigger(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.StaleEvaluationTrigger, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; on-demand stale evaluation disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
