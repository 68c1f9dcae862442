// Package main runs the class meeting HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/classmeet/backend/config"
	"github.com/classmeet/backend/internal/access"
	"github.com/classmeet/backend/internal/analytics"
	"github.com/classmeet/backend/internal/auth"
	"github.com/classmeet/backend/internal/emaillogs"
	"github.com/classmeet/backend/internal/meetings"
	"github.com/classmeet/backend/internal/middleware"
	"github.com/classmeet/backend/internal/models"
	"github.com/classmeet/backend/internal/notify"
	"github.com/classmeet/backend/internal/realtime"
	"github.com/classmeet/backend/pkg/database"
	"github.com/classmeet/backend/pkg/queue"
	"github.com/classmeet/backend/pkg/redis"
	"github.com/classmeet/backend/pkg/response"
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

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

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

	mailer, shutdownMailer := newMailer(ctx, cfg.Email, logger)
	defer shutdownMailer()

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	hub := realtime.NewHub(logger, realtime.NewRedisPubSub(rdb.Client, logger))
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Users
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Notifications
	emailLogsRepo := emaillogs.NewRepository(pool)
	notifier := notify.NewEmailNotifier(mailer, emailLogsRepo, cfg.Email.SendTimeout, logger)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo, jobQueue, logger)

	// Meetings
	meetingRepo := meetings.NewRepository(pool)
	linkRepo := access.NewRepository(pool)
	issuer := access.NewIssuer(linkRepo, cfg.Links.BaseURL, cfg.Links.TokenLength)
	meetingSvc := meetings.NewService(meetingRepo, authRepo, notifier, issuer, logger)
	meetingSvc.SetConcurrency(cfg.Meetings.NotifyConcurrency)
	meetingSvc.SetPublisher(hub)
	if cfg.Meetings.DistributedLocking {
		meetingSvc.SetLocker(redis.NewLocker(rdb.Client, cfg.Meetings.LockTTL, logger))
	}
	meetingHandler := meetings.NewHandler(meetingSvc, logger)
	accessHandler := access.NewHandler(linkRepo, meetingRepo, logger)
	analyticsHandler := analytics.NewHandler(meetingRepo, emailLogsRepo, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		if err := pool.Ping(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "database unavailable")
			return
		}
		if err := rdb.Healthy(c.Request.Context()); err != nil {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})

	// Public
	router.POST("/auth/login", authHandler.Login)
	router.GET("/links/:token/validate", accessHandler.Validate)

	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users
		api.POST("/users", middleware.Require(models.ActionManageUsers), authHandler.Create)
		api.GET("/users", middleware.Require(models.ActionListUsers), authHandler.List)
		api.GET("/users/:id", middleware.Require(models.ActionListUsers), authHandler.GetByID)
		api.PATCH("/users/:id", middleware.Require(models.ActionManageUsers), authHandler.Update)
		api.DELETE("/users/:id", middleware.Require(models.ActionManageUsers), authHandler.Delete)

		// Meetings
		api.GET("/meetings", meetingHandler.List)
		api.GET("/meetings/summary", middleware.Require(models.ActionListUsers), analyticsHandler.Summary)
		api.GET("/meetings/:id", meetingHandler.GetByID)
		api.POST("/meetings", meetingHandler.Create)
		api.POST("/meetings/:id/allocate", meetingHandler.Allocate)
		api.POST("/meetings/:id/remove", meetingHandler.Remove)
		api.PATCH("/meetings/:id/reschedule", meetingHandler.Reschedule)
		api.DELETE("/meetings/:id", meetingHandler.Delete)

		// Email logs
		api.GET("/meetings/:id/emails", middleware.Require(models.ActionAllocate), emailLogsHandler.ListByMeeting)
		api.POST("/meetings/:id/emails/resend", middleware.Require(models.ActionAllocate), emailLogsHandler.Resend)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, jwtService, meetingRepo, cfg.Server.CORSAllowedOrigins, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// newMailer returns the SMTP mailer when configured, else a mailer that only logs.
func newMailer(ctx context.Context, cfg config.EmailConfig, logger *zap.Logger) (notify.Mailer, func()) {
	if !cfg.Enabled() {
		logger.Warn("SMTP_HOST not set, emails are logged only")
		return notify.NewLogMailer(logger), func() {}
	}
	m, err := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.FromAddress,
		FromName: cfg.FromName,
		Timeout:  cfg.SendTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("mailer", zap.Error(err))
	}
	initCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
	defer cancel()
	if err := m.Init(initCtx); err != nil {
		logger.Warn("mail server check failed", zap.Error(err))
	}
	return m, func() { _ = m.Shutdown() }
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
