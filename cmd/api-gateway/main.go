package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/enquiry-desk-api/api/swagger"
	"github.com/noah-isme/enquiry-desk-api/internal/handler"
	"github.com/noah-isme/enquiry-desk-api/internal/middleware"
	"github.com/noah-isme/enquiry-desk-api/internal/models"
	"github.com/noah-isme/enquiry-desk-api/internal/repository"
	"github.com/noah-isme/enquiry-desk-api/internal/service"
	"github.com/noah-isme/enquiry-desk-api/internal/validation"
	"github.com/noah-isme/enquiry-desk-api/pkg/cache"
	"github.com/noah-isme/enquiry-desk-api/pkg/config"
	"github.com/noah-isme/enquiry-desk-api/pkg/database"
	"github.com/noah-isme/enquiry-desk-api/pkg/events"
	"github.com/noah-isme/enquiry-desk-api/pkg/jobs"
	"github.com/noah-isme/enquiry-desk-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/enquiry-desk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/enquiry-desk-api/pkg/middleware/requestid"
	"github.com/noah-isme/enquiry-desk-api/pkg/scheduler"
)

// @title Enquiry Desk API
// @version 1.0.0
// @description Enquiry lifecycle, payment ledger and advertisement lead import
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("failed to apply schema", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Stats.CacheEnabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("statistics cache disabled", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, redisClient != nil)

	eventSvc, shutdownEvents := buildEvents(ctx, cfg, metrics, logr)
	defer shutdownEvents()

	loc := cfg.Location()
	validate := validation.New()

	userRepo := repository.NewUserRepository(db)
	enquiryRepo := repository.NewEnquiryRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	advertRepo := repository.NewAdvertisementRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		SessionTokenExpiry: cfg.JWT.SessionExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	enquirySvc := service.NewEnquiryService(enquiryRepo, service.EnquiryServiceConfig{
		Audit:     userRepo,
		Events:    eventSvc,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validation.NewEnquiryValidator(validate, loc),
		Location:  loc,
		Logger:    logr,
	})
	paymentSvc := service.NewPaymentService(paymentRepo, userRepo, eventSvc, cacheSvc, logr)
	advertSvc := service.NewAdvertisementService(advertRepo, service.AdvertisementServiceConfig{
		Audit:     userRepo,
		Events:    eventSvc,
		Metrics:   metrics,
		Validator: validate,
		MaxRows:   cfg.Imports.MaxRows,
		Logger:    logr,
	})
	statsSvc := service.NewStatisticsService(enquirySvc, cacheSvc, loc, logr)
	exportSvc := service.NewExportService(enquirySvc, paymentRepo, advertRepo, loc, logr, nil, nil)

	if cfg.FollowUp.DigestEnabled {
		digest := service.NewFollowUpDigestService(statsSvc, eventSvc, loc, logr)
		sched := scheduler.New(loc, logr)
		if err := sched.Register("followup-digest", cfg.FollowUp.DigestCron, time.Minute, digest.Run); err != nil {
			logr.Fatal("failed to schedule follow-up digest", zap.Error(err))
		}
		sched.Start()
		defer sched.Stop()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.Pinger{
		"database": db,
		"cache":    handler.PingerFunc(cacheRepo.Ping),
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeHandlers{
		auth:           handler.NewAuthHandler(authSvc),
		users:          handler.NewUserHandler(userSvc),
		enquiries:      handler.NewEnquiryHandler(enquirySvc, exportSvc),
		payments:       handler.NewPaymentHandler(paymentSvc, exportSvc),
		advertisements: handler.NewAdvertisementHandler(advertSvc, exportSvc),
		stats:          handler.NewStatsHandler(statsSvc),
		metrics:        metricsHandler,
	}, authSvc)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildEvents wires the Kafka publisher behind the job queue. Disabled or
// unreachable brokers yield a publisher that drops every event.
func buildEvents(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*service.EventService, func()) {
	if !cfg.Events.Enabled {
		return service.NewEventService(nil, metrics, logr), func() {}
	}
	producer, err := events.NewKafkaProducer(cfg.Events)
	if err != nil {
		logr.Warn("event publishing disabled", zap.Error(err))
		return service.NewEventService(nil, metrics, logr), func() {}
	}
	queue := jobs.NewQueue("events", service.NewEventDeliveryHandler(producer, metrics, logr), jobs.QueueConfig{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.Retries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	queue.Start(ctx)
	return service.NewEventService(queue, metrics, logr), func() {
		queue.Stop()
		if err := producer.Close(); err != nil {
			logr.Warn("failed to close kafka producer", zap.Error(err))
		}
	}
}

type routeHandlers struct {
	auth           *handler.AuthHandler
	users          *handler.UserHandler
	enquiries      *handler.EnquiryHandler
	payments       *handler.PaymentHandler
	advertisements *handler.AdvertisementHandler
	stats          *handler.StatsHandler
	metrics        *handler.MetricsHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers, tokens middleware.TokenValidator) {
	authGroup := api.Group("/auth")
	authGroup.POST("/login", h.auth.Login)
	authGroup.POST("/refresh", h.auth.Refresh)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))

	secured.POST("/auth/logout", h.auth.Logout)
	secured.POST("/auth/change-password", h.auth.ChangePassword)
	secured.GET("/auth/me", h.auth.Me)
	secured.GET("/metrics/snapshot", middleware.RequireAdmin(), h.metrics.Snapshot)

	view := middleware.RequirePermission(models.PermissionViewEnquiries)
	edit := middleware.RequirePermission(models.PermissionEditEnquiries)
	export := middleware.RequirePermission(models.PermissionExport)

	enquiries := secured.Group("/enquiries")
	enquiries.GET("", view, h.enquiries.List)
	enquiries.POST("", edit, h.enquiries.Create)
	enquiries.POST("/duplicates", edit, h.enquiries.CheckDuplicates)
	enquiries.GET("/existing", view, h.enquiries.Existing)
	enquiries.GET("/export", export, h.enquiries.Export)
	enquiries.GET("/stats", view, h.stats.Overview)
	enquiries.GET("/stats/payments", middleware.RequirePermission(models.PermissionViewPayments), h.stats.Payments)
	enquiries.GET("/stats/states", view, h.stats.States)
	enquiries.GET("/stats/education", view, h.stats.Education)
	enquiries.GET("/:id", view, h.enquiries.Get)
	enquiries.PATCH("/:id", edit, h.enquiries.Update)
	enquiries.DELETE("/:id", middleware.RequireAdmin(), h.enquiries.Delete)
	enquiries.POST("/:id/payments", middleware.RequirePermission(models.PermissionRecordPayments), h.enquiries.AddPayment)

	secured.GET("/followups/:kind", view, h.stats.FollowUps)

	payments := secured.Group("/payments")
	payments.GET("", middleware.RequirePermission(models.PermissionViewPayments), h.payments.List)
	payments.GET("/export", export, h.payments.Export)
	payments.DELETE("/:id", middleware.RequireAdmin(), h.payments.Delete)

	importer := middleware.RequirePermission(models.PermissionImportAdvertising)
	adverts := secured.Group("/advertisements")
	adverts.GET("", middleware.RequirePermission(models.PermissionImportAdvertising, models.PermissionViewEnquiries), h.advertisements.List)
	adverts.POST("/validate", importer, h.advertisements.Validate)
	adverts.POST("/import", importer, h.advertisements.Import)
	adverts.GET("/export", export, h.advertisements.Export)
	adverts.DELETE("/:id", middleware.RequireAdmin(), h.advertisements.Delete)

	users := secured.Group("/users")
	users.Use(middleware.RequireAdmin())
	users.GET("", h.users.List)
	users.POST("", h.users.Create)
	users.GET("/:id", h.users.Get)
	users.PUT("/:id", h.users.Update)
	users.DELETE("/:id", h.users.Delete)
	users.POST("/:id/deactivate", h.users.Deactivate)
	users.POST("/:id/password", h.users.RotatePassword)
}
