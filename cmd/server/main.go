package main // Entry point package

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/BrianYam/lil-frankenstack-sub001/internal/config"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/database"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/handler"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/logs"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/middleware"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/queue"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/repository"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/router"
	"github.com/BrianYam/lil-frankenstack-sub001/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment

	cfg := config.Load()
	logger := logs.New(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(context.Background(), cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.WithError(err).Fatal("database connect failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting disabled")
	}

	users := repository.NewUserRepo(db)
	details := repository.NewUserDetailsRepo(db)
	keys := repository.NewAPIKeyRepo(db)
	events := service.NewPublisher(logger)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(logger)
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	router.Register(e, router.Deps{
		Cfg:      cfg,
		RateCfg:  config.LoadRateLimitConfig(),
		Redis:    rdb,
		Log:      logger,
		Auth:     handler.NewAuthHandler(cfg, users, events, logger),
		Users:    handler.NewUserHandler(cfg, users, details),
		Keys:     handler.NewAPIKeyHandler(cfg, keys, events, logger),
		UserRepo: users,
		KeyRepo:  keys,
	})

	// Local audit trail of auth events; email/Telegram consumers live in
	// other services.
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			logger.WithError(err).Warn("audit consumer stopped")
		}
	}()

	addr := ":" + cfg.Port
	logger.WithField("addr", addr).WithField("env", cfg.Env).Info("listening")

	if err := e.Start(addr); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
