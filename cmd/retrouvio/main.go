package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/retrouvio/retrouvio/internal/actors"
	"github.com/retrouvio/retrouvio/internal/app"
	"github.com/retrouvio/retrouvio/internal/notify"
	"github.com/retrouvio/retrouvio/internal/observability"
	"github.com/retrouvio/retrouvio/internal/perm"
	"github.com/retrouvio/retrouvio/internal/platform/cache"
	"github.com/retrouvio/retrouvio/internal/platform/db"
	"github.com/retrouvio/retrouvio/internal/presence"
	"github.com/retrouvio/retrouvio/internal/shared"
	"github.com/retrouvio/retrouvio/internal/validation"
	"github.com/retrouvio/retrouvio/internal/ws"
	"github.com/retrouvio/retrouvio/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	permMW := perm.Middleware{Logger: logger}

	actorsRepo := actors.NewRepository(pool)
	actorsService := actors.NewService(actorsRepo)
	identity := shared.IdentityLoader{Source: actorsService, Logger: logger}

	ledgerRepo := validation.NewRepository(pool)
	ledger := validation.NewService(ledgerRepo, logger)

	registry := presence.NewRegistry(cfg.PushTimeout)

	notifyService := notify.NewService(notify.ServiceConfig{
		Repo:      notify.NewRepository(pool),
		Pusher:    registry,
		Directory: actorsService,
		Rooms:     notify.NewRedisRoomResolver(redisClient),
		Cache:     notify.NewUnreadCache(redisClient, cfg.UnreadCacheTTL),
		Logger:    logger,
		Metrics:   metrics,
		Fanout:    cfg.BroadcastFanout,
	})

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		Pool:                 pool,
		Metrics:              metrics,
		Identity:             identity,
		PermissionsHandler:   perm.NewHandler(),
		ActionsHandler:       validation.NewHandler(logger, ledger, permMW),
		NotificationsHandler: notify.NewHandler(logger, notifyService, ledger, permMW),
		PresenceHandler:      presence.NewHandler(registry),
		ActorsHandler:        actors.NewHandler(logger, actorsService, ledger, permMW),
		JobsHandler:          jobs.NewHandler(inspector, logger),
		WSHandler:            ws.NewHandler(logger, registry, cfg.OriginPatterns()),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
