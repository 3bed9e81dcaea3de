package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/park285/hotseat-chess/internal/app"
	"github.com/park285/hotseat-chess/internal/config"
	"github.com/park285/hotseat-chess/internal/obslog"
	"go.uber.org/zap"
)

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer obslog.Sync()
	logger := obslog.L()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("app_init_error", zap.Error(err))
	}
	defer a.Close()

	logger.Info("hotseat_starting",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("live_addr", cfg.LiveAddr),
		zap.String("locale", cfg.MessageLocale),
		zap.Bool("redis", cfg.RedisURL != ""),
	)
	if err := a.Run(ctx); err != nil {
		logger.Error("hotseat_stopped", zap.Error(err))
		return
	}
	logger.Info("hotseat_stopped")
}
