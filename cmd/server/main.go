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

	"go.uber.org/zap"

	"github.com/iliyamo/iot-auth-service/internal/broker"
	"github.com/iliyamo/iot-auth-service/internal/config"
	"github.com/iliyamo/iot-auth-service/internal/database"
	"github.com/iliyamo/iot-auth-service/internal/handler"
	"github.com/iliyamo/iot-auth-service/internal/logging"
	"github.com/iliyamo/iot-auth-service/internal/middleware"
	"github.com/iliyamo/iot-auth-service/internal/queue"
	"github.com/iliyamo/iot-auth-service/internal/ratelimit"
	"github.com/iliyamo/iot-auth-service/internal/repository"
	"github.com/iliyamo/iot-auth-service/internal/router"
	"github.com/iliyamo/iot-auth-service/internal/service"
	"github.com/iliyamo/iot-auth-service/internal/sso"
	"github.com/iliyamo/iot-auth-service/migrations"
)

const (
	sweepInterval   = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, migrations.FS); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// Redis is optional: login counters fall back to process memory and the
	// request bucket is disabled.
	rdb := config.NewRedisClient(ctx)
	var counters ratelimit.Store
	if rdb != nil {
		defer rdb.Close()
		counters = ratelimit.NewRedisStore(rdb, "auth")
	} else {
		log.Warn("redis unavailable, login counters are process-local")
		mem := ratelimit.NewMemoryStore()
		counters = mem
		go every(ctx, cfg.LoginFailureWindow, func() { mem.Sweep() })
	}
	limiter := ratelimit.New(counters, cfg.LoginMaxFailures, cfg.LoginFailureWindow)

	var pub queue.Publisher = queue.NopPublisher{}
	if cfg.Events.Enabled {
		pub = queue.NewAMQPPublisher(cfg.Events.URL, cfg.Events.Queue)
		log.Info("auth events enabled", zap.String("queue", cfg.Events.Queue))
	}
	if cfg.Events.AuditConsumer {
		consumer := queue.NewAuditConsumer(cfg.Events.URL, cfg.Events.Queue, cfg.Events.AuditLogDir, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	var notifier broker.Notifier = broker.NopNotifier{}
	if cfg.MQTT.BrokerURL != "" {
		n, err := broker.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("mqtt broker unavailable, credential notices disabled", zap.Error(err))
		} else {
			notifier = n
		}
	}
	defer notifier.Close()

	users := repository.NewUserRepo(db)
	tenantRepo := repository.NewTenantRepo(db)

	tokens := service.NewTokenService(repository.NewTokenRepo(db), users, cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), log)
	auth := service.NewAuthService(users, tenantRepo, tokens, limiter, sso.NewValidator(cfg.AllowedOrigins), pub, cfg.BcryptCost, log)
	tenants := service.NewTenantService(tenantRepo, pub, log)
	accounts := service.NewUserService(users, repository.NewDetailsRepo(db), tokens, pub, cfg.BcryptCost, log)
	mqtt := service.NewMQTTService(repository.NewMQTTRepo(db), notifier, pub, cfg.BcryptCost, log)

	ready := map[string]handler.Pinger{"database": db}
	if rdb != nil {
		ready["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	e := router.New(router.Deps{
		Auth:           handler.NewAuthHandler(auth, tokens, cfg.CookieSecure, cfg.RequestTimeout),
		Tenants:        handler.NewTenantHandler(tenants, cfg.RequestTimeout),
		Users:          handler.NewUserHandler(accounts, cfg.RequestTimeout),
		MQTT:           handler.NewMQTTHandler(mqtt, log, cfg.RequestTimeout),
		Authenticator:  tokens,
		APIKey:         cfg.APIKey,
		TenantSecret:   cfg.TenantSecretKey,
		RequestBucket:  middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		AllowedOrigins: cfg.AllowedOrigins,
		Ready:          ready,
		Log:            log,
	})

	go every(ctx, sweepInterval, func() {
		n, err := tokens.Sweep(ctx)
		if err != nil {
			log.Warn("refresh token sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			log.Info("refresh tokens swept", zap.Int64("deleted", n))
		}
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", ":"+cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// every runs fn on each tick until ctx is done.
func every(ctx context.Context, d time.Duration, fn func()) {
	if d <= 0 {
		return
	}
	t := time.NewTicker(d)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
