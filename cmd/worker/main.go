// Package main runs the background worker: email resends and the meeting reaper.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/classmeet/backend/config"
	"github.com/classmeet/backend/internal/emaillogs"
	"github.com/classmeet/backend/internal/meetings"
	"github.com/classmeet/backend/internal/notify"
	"github.com/classmeet/backend/internal/worker"
	"github.com/classmeet/backend/pkg/database"
	"github.com/classmeet/backend/pkg/queue"
	"github.com/classmeet/backend/pkg/redis"
	"github.com/classmeet/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolConfig{MaxConns: int32(cfg.Database.MaxConns)}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var mailer notify.Mailer = notify.NewLogMailer(logger)
	if cfg.Email.Enabled() {
		smtp, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUser,
			Password: cfg.Email.SMTPPass,
			From:     cfg.Email.FromAddress,
			FromName: cfg.Email.FromName,
			Timeout:  cfg.Email.SendTimeout,
		}, logger)
		if err != nil {
			logger.Fatal("mailer", zap.Error(err))
		}
		defer smtp.Shutdown()
		mailer = smtp
	}

	notifier := notify.NewEmailNotifier(mailer, emaillogs.NewRepository(pool), cfg.Email.SendTimeout, logger)
	processor := worker.NewEmailProcessor(notifier, queue.NewQueue(rdb.Client, logger), logger)

	var archiver worker.Archiver
	if cfg.Reaper.Archive {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			ArchiveBucket:   cfg.AWS.ArchiveBucket,
			Endpoint:        cfg.AWS.Endpoint,
		}, logger)
		if err != nil {
			logger.Fatal("s3", zap.Error(err))
		}
		archiver = s3Client
	}
	reaper := worker.NewReaper(meetings.NewRepository(pool), archiver, cfg.Reaper.Interval, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); processor.Run(workerCtx) }()
	go func() { defer wg.Done(); reaper.Run(workerCtx) }()
	logger.Info("worker started", zap.Bool("archive", archiver != nil), zap.Duration("reaper_interval", cfg.Reaper.Interval))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	wg.Wait()
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
