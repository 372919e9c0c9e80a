// Package main runs the LearnHub HTTP server with WebSocket push and graceful shutdown.
package main

import (
	"context"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/learnhub/backend/config"
	"github.com/learnhub/backend/internal/analytics"
	"github.com/learnhub/backend/internal/auth"
	"github.com/learnhub/backend/internal/courses"
	"github.com/learnhub/backend/internal/democlasses"
	"github.com/learnhub/backend/internal/emaillogs"
	"github.com/learnhub/backend/internal/middleware"
	"github.com/learnhub/backend/internal/models"
	"github.com/learnhub/backend/internal/orders"
	"github.com/learnhub/backend/internal/realtime"
	"github.com/learnhub/backend/internal/registrations"
	"github.com/learnhub/backend/internal/worker"
	"github.com/learnhub/backend/pkg/broker"
	"github.com/learnhub/backend/pkg/database"
	"github.com/learnhub/backend/pkg/mailer"
	"github.com/learnhub/backend/pkg/queue"
	"github.com/learnhub/backend/pkg/redis"
	"github.com/learnhub/backend/pkg/response"
	"github.com/learnhub/backend/pkg/storage"
	"github.com/learnhub/backend/pkg/utils"
)

const admin = string(models.RoleAdmin)

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

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Nil unless configured, so democlasses sees a nil interface rather than a nil *S3.
	var covers democlasses.CoverStore
	if cfg.AWS.Region != "" && cfg.AWS.MediaBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Bucket:          cfg.AWS.MediaBucket,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			covers = s3Client
		}
	}

	events := broker.New(cfg.Broker.URL, cfg.Broker.Exchange, logger)
	if c, ok := events.(io.Closer); ok {
		defer c.Close()
	}

	var backplane realtime.Backplane
	if cfg.Realtime.Backplane == "redis" {
		backplane = realtime.NewRedisBackplane(rdb.Client, logger)
	}
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	hub := realtime.NewHub(logger, backplane)
	if err := hub.Start(hubCtx); err != nil {
		logger.Fatal("realtime hub", zap.Error(err))
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	validate := jwtService.ValidateFunc()

	// Auth
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	seedAdmin(ctx, authRepo, cfg.Admin, logger)

	// Demo classes
	demoClassSvc := democlasses.NewService(democlasses.NewRepository(pool), covers, hub, logger)
	demoClassHandler := democlasses.NewHandler(demoClassSvc, logger)

	// Registrations
	registrationSvc := registrations.NewService(registrations.NewRepository(pool), hub, jobQueue, events, logger)
	registrationHandler := registrations.NewHandler(registrationSvc, logger)

	// Orders, coupons and courses
	orderSvc := orders.NewService(orders.NewRepository(pool), hub, jobQueue, events, logger)
	orderHandler := orders.NewHandler(orderSvc, logger)
	courseHandler := courses.NewHandler(courses.NewRepository(pool), logger)

	// Email logs
	emailLogsRepo := emaillogs.NewRepository(pool)
	emailLogsHandler := emaillogs.NewHandler(emailLogsRepo, registrationSvc, jobQueue, logger)

	analyticsHandler := analytics.NewHandler(analytics.NewRepository(pool))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Errors(logger))

	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok", "realtime": hub.Running()})
	})

	// WebSocket (token in query or Authorization header)
	wsAuth := realtime.NewAuthenticator(validate, authRepo)
	router.GET("/ws", realtime.ServeWs(hub, wsAuth, realtime.ServeOptions{
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
		SendBuffer:     cfg.Realtime.SendBufferSize,
	}, logger))

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/me", middleware.JWT(validate), authHandler.Me)
	}

	// Public catalogue; a token, when sent, unlocks admin views and owned registrations.
	public := api.Group("", middleware.OptionalJWT(validate))
	{
		public.GET("/demo-classes", demoClassHandler.List)
		public.GET("/demo-classes/:id", demoClassHandler.Get)
		public.POST("/demo-classes/:id/register", middleware.RateLimit(cfg.RateLimit, rdb.Client, logger), registrationHandler.Register)
		public.GET("/courses", courseHandler.List)
		public.GET("/courses/:id", courseHandler.Get)
	}

	authed := api.Group("", middleware.JWT(validate))
	{
		authed.GET("/registrations/me", registrationHandler.Mine)
		authed.DELETE("/registrations/:id", registrationHandler.Cancel)

		authed.POST("/coupons/validate", orderHandler.ValidateCoupon)
		authed.POST("/orders", orderHandler.Create)
		authed.GET("/orders/me", orderHandler.Mine)
		authed.GET("/enrollments/me", courseHandler.MyEnrollments)
	}

	adminGroup := api.Group("/admin", middleware.JWT(validate), middleware.RequireRole(admin))
	{
		adminGroup.POST("/demo-classes", demoClassHandler.Create)
		adminGroup.PATCH("/demo-classes/:id", demoClassHandler.Update)
		adminGroup.PUT("/demo-classes/:id/cover", demoClassHandler.UploadCover)
		adminGroup.GET("/demo-classes/:id/analytics", analyticsHandler.GetByDemoClass)

		adminGroup.GET("/registrations", registrationHandler.List)
		adminGroup.GET("/registrations/:id", registrationHandler.Get)
		adminGroup.PATCH("/registrations/:id/approve", registrationHandler.Approve)
		adminGroup.PATCH("/registrations/:id/reject", registrationHandler.Reject)
		adminGroup.PATCH("/registrations/:id/payment", registrationHandler.UpdatePayment)
		adminGroup.GET("/registrations/:id/emails", emailLogsHandler.ListByRegistration)
		adminGroup.POST("/registrations/:id/emails/resend", emailLogsHandler.Resend)

		adminGroup.POST("/coupons", orderHandler.CreateCoupon)
		adminGroup.GET("/coupons", orderHandler.ListCoupons)
		adminGroup.GET("/orders", orderHandler.List)
		adminGroup.PATCH("/orders/:id/confirm", orderHandler.Confirm)
		adminGroup.PATCH("/orders/:id/fail", orderHandler.Fail)

		adminGroup.POST("/courses", courseHandler.Create)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// In-process email worker; cmd/worker runs the same loop standalone.
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})
	if cfg.Server.RunEmailWorker {
		templates, err := mailer.LoadTemplates()
		if err != nil {
			logger.Fatal("email templates", zap.Error(err))
		}
		sender := mailer.New(cfg.Email.APIKey, cfg.Email.FromName, cfg.Email.FromAddress, logger)
		processor := worker.NewEmailProcessor(templates, sender, emailLogsRepo, jobQueue, logger)
		go func() {
			defer close(workerDone)
			processor.Run(workerCtx)
		}()
	} else {
		close(workerDone)
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	hubCancel()
	workerCancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("email worker did not stop in time")
	}
	logger.Info("server stopped")
}

func seedAdmin(ctx context.Context, repo *auth.Repository, cfg config.AdminConfig, logger *zap.Logger) {
	if cfg.Email == "" {
		return
	}
	hash, err := utils.HashPassword(cfg.Password)
	if err != nil {
		logger.Fatal("hash admin password", zap.Error(err))
	}
	created, err := repo.EnsureAdmin(ctx, cfg.Email, hash, cfg.FullName)
	if err != nil {
		logger.Fatal("seed admin", zap.Error(err))
	}
	if created {
		logger.Info("admin account created", zap.String("email", cfg.Email))
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
