// Package main runs the event registration HTTP server with graceful shutdown.
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

	"github.com/levelup-events/backend/config"
	"github.com/levelup-events/backend/internal/auth"
	"github.com/levelup-events/backend/internal/emails"
	"github.com/levelup-events/backend/internal/events"
	"github.com/levelup-events/backend/internal/middleware"
	"github.com/levelup-events/backend/internal/registrations"
	"github.com/levelup-events/backend/internal/teams"
	"github.com/levelup-events/backend/pkg/database"
	"github.com/levelup-events/backend/pkg/queue"
	"github.com/levelup-events/backend/pkg/redis"
	"github.com/levelup-events/backend/pkg/response"
	"github.com/levelup-events/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
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

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			InvitesBucket:        cfg.AWS.InvitesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	var verifier *auth.Verifier
	if cfg.Auth.IssuerURL != "" {
		verifier, err = auth.NewVerifier(ctx, cfg.Auth.IssuerURL, cfg.Auth.ClientID)
		if err != nil {
			logger.Fatal("auth verifier", zap.Error(err))
		}
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Events
	eventRepo := events.NewRepository(pool, rdb.Client)
	eventHandler := events.NewHandler(eventRepo, s3Client, logger)

	// Registrations
	registrationRepo := registrations.NewRepository(pool)
	registrationSvc := registrations.NewService(registrationRepo, eventRepo, jobQueue, logger)
	registrationHandler := registrations.NewHandler(registrationSvc, s3Client, cfg.App.SiteURL, cfg.App.CorpEmailDomain, logger)

	// Teams
	teamRepo := teams.NewRepository(pool)
	teamHandler := teams.NewHandler(teamRepo, logger)

	// Email logs
	emailLogRepo := emails.NewRepository(pool)
	emailLogHandler := emails.NewHandler(emailLogRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Public: browse open events and manage your own registration
	router.GET("/events", eventHandler.ListOpen)
	router.GET("/events/:id", eventHandler.GetByID)
	router.POST("/events/:id/registrations", registrationHandler.Register)
	router.GET("/registrations/:id", registrationHandler.Get)
	router.PATCH("/registrations/:id", registrationHandler.Update)
	router.POST("/registrations/:id/checkin", registrationHandler.CheckIn)
	router.POST("/registrations/:id/cancel", registrationHandler.Cancel)
	router.GET("/registrations/:id/qr", registrationHandler.QR)
	router.POST("/registrations/search", registrationHandler.Search)
	router.POST("/teams", teamHandler.Create)
	router.GET("/teams", teamHandler.List)

	// Admin API (IdP cookie + admin group). Disabled when no issuer is configured.
	if verifier != nil {
		admin := router.Group("")
		admin.Use(middleware.Authenticate(verifier))
		admin.Use(middleware.RequireGroup(cfg.Auth.AdminGroup))
		{
			admin.GET("/admin/events", eventHandler.List)
			admin.POST("/events", eventHandler.Create)
			admin.PATCH("/events/:id", eventHandler.Update)
			admin.DELETE("/events/:id", eventHandler.Delete)
			admin.POST("/events/:id/invite", eventHandler.UploadInvite)
			admin.GET("/events/:id/registrations", registrationHandler.Roster)
			admin.GET("/events/:id/emails", emailLogHandler.ListByEvent)
		}
	} else {
		logger.Warn("AUTH_ISSUER_URL not set; admin routes disabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
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

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
