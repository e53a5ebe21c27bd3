package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/khalilhajj/PfeManagement/config"
	"github.com/khalilhajj/PfeManagement/internal/api/handler"
	"github.com/khalilhajj/PfeManagement/internal/api/router"
	"github.com/khalilhajj/PfeManagement/internal/job"
	"github.com/khalilhajj/PfeManagement/internal/repository"
	"github.com/khalilhajj/PfeManagement/internal/service"
	"github.com/khalilhajj/PfeManagement/pkg/database"
	"github.com/khalilhajj/PfeManagement/pkg/jwt"
	applogger "github.com/khalilhajj/PfeManagement/pkg/logger"
	"github.com/khalilhajj/PfeManagement/pkg/mailer"
	"github.com/khalilhajj/PfeManagement/pkg/matcher"
	"github.com/khalilhajj/PfeManagement/pkg/metrics"
	"github.com/khalilhajj/PfeManagement/pkg/redis"
	"github.com/khalilhajj/PfeManagement/pkg/storage"
)

func main() {
	// 1. Configuration
	cfg, err := config.Load(os.Getenv("PFE_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Logger
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
		zap.String("storage", cfg.Storage.Driver),
	)

	// 3. Database
	db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("get sql.DB", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	// 4. Redis is optional: without it logout revocation, rate limiting and
	// live notifications are disabled.
	infra := service.Infra{JWT: jwt.NewManager(&cfg.Auth)}
	deps := router.Deps{JWT: infra.JWT}
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, running degraded", zap.Error(err))
		rdb = nil
	} else {
		infra.Tokens, infra.Broker = rdb, rdb
		deps.Blacklist, deps.Limiter = rdb, rdb
	}

	// 5. File storage
	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		logger.Fatal("init storage", zap.Error(err))
	}
	infra.Storage = store
	if local, ok := store.(*storage.Local); ok {
		deps.MediaRoot = local.Root()
	}

	// 6. Mail, match scoring, metrics
	infra.Mailer = mailer.New(&cfg.Mail, logger)
	if cfg.Matcher.APIKey != "" {
		infra.Scorer = matcher.New(&cfg.Matcher, logger)
	} else {
		logger.Info("match scoring disabled")
	}
	infra.Metrics = metrics.New()
	deps.Metrics = infra.Metrics

	// 7. Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, infra, logger)
	h := handler.NewHandler(svc)

	// 8. Background jobs
	scheduler, err := job.NewScheduler(cfg.Jobs, svc.Soutenance, svc.User, logger)
	if err != nil {
		logger.Fatal("init scheduler", zap.Error(err))
	}
	scheduler.Start()

	// 9. HTTP server with graceful shutdown. WriteTimeout stays zero so the
	// notification stream is not cut.
	engine := router.Setup(cfg, h, deps, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	scheduler.Stop(ctx)

	if err := sqlDB.Close(); err != nil {
		logger.Error("close database", zap.Error(err))
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("stopped")
}
