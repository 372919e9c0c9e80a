// Package main runs the background email worker: it drains the Redis email queue,
// sends through SendGrid and records each attempt in email_logs.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/learnhub/backend/config"
	"github.com/learnhub/backend/internal/emaillogs"
	"github.com/learnhub/backend/internal/worker"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/mailer"
	"github.com/learnhub/backend/pkg/queue"
	"github.com/learnhub/backend/pkg/redis"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	templates, err := mailer.LoadTemplates()
	if err != nil {
		logger.Fatal("email templates", zap.Error(err))
	}
	sender := mailer.New(cfg.Email.APIKey, cfg.Email.FromName, cfg.Email.FromAddress, logger)
	processor := worker.NewEmailProcessor(templates, sender, emaillogs.NewRepository(pool), queue.NewQueue(rdb.Client, logger), logger)

	logger.Info("worker started")
	processor.Run(ctx)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
