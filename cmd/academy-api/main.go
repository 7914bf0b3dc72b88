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
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/academy-api/api/swagger"
	"github.com/noah-isme/academy-api/internal/handler"
	"github.com/noah-isme/academy-api/internal/middleware"
	"github.com/noah-isme/academy-api/internal/models"
	"github.com/noah-isme/academy-api/internal/repository"
	"github.com/noah-isme/academy-api/internal/service"
	"github.com/noah-isme/academy-api/pkg/cache"
	"github.com/noah-isme/academy-api/pkg/config"
	"github.com/noah-isme/academy-api/pkg/database"
	"github.com/noah-isme/academy-api/pkg/jobs"
	"github.com/noah-isme/academy-api/pkg/logger"
	"github.com/noah-isme/academy-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academy-api/pkg/middleware/requestid"
	"github.com/noah-isme/academy-api/pkg/password"
	"github.com/noah-isme/academy-api/pkg/session"
	"github.com/noah-isme/academy-api/pkg/token"
)

// @title Academy API
// @version 1.0.0
// @description Authentication and account provisioning for the academy platform.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()
		redisClient = client
	} else {
		logr.Warn("redis disabled: token revocation and attempt limiting are off")
	}

	codec, err := token.NewCodec(token.Config{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.Expiration,
		RefreshTTL: cfg.JWT.RefreshExpiration,
	})
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}

	sender, err := mailer.New(ctx, cfg.Mail, logr)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	validate := validator.New()
	hasher := password.NewHasher(cfg.Auth.BcryptCost)

	userRepo := repository.NewUserRepository(db)
	otpRepo := repository.NewOTPRepository(db)
	resetRepo := repository.NewPasswordResetRepository(db)
	revocations := repository.NewTokenRevocationRepository(redisClient)
	attempts := repository.NewAttemptRepository(redisClient)

	notifications := service.NewNotificationService(sender, service.NotificationConfig{
		AppBaseURL:  cfg.Mail.AppBaseURL,
		ProductName: cfg.Mail.FromName,
	}, logr, metrics)

	mailQueue := jobs.NewQueue("mail", notifications.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Jobs.Workers,
		MaxRetries: cfg.Jobs.Retries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
		OnDiscard: func(jobs.Job, error) {
			metrics.RecordMailJob(service.OutcomeDiscarded)
		},
	})
	notifications.UseQueue(mailQueue)
	mailQueue.Start(context.Background())
	defer mailQueue.Stop()

	authService := service.NewAuthService(service.AuthDeps{
		Users:    userRepo,
		OTPs:     otpRepo,
		Resets:   resetRepo,
		Revoker:  revocations,
		Limiter:  attempts,
		Notifier: notifications,
		Hasher:   hasher,
		Tokens:   codec,
		Events:   metrics,
	}, validate, logr, service.AuthConfig{
		OTPTTL:            cfg.Auth.OTPTTL,
		ResetTTL:          cfg.Auth.ResetTTL,
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		LoginMaxAttempts:  cfg.Auth.LoginMaxAttempts,
		LoginLockout:      cfg.Auth.LoginLockout,
		OTPRequestLimit:   cfg.Auth.OTPRequestLimit,
		OTPRequestWindow:  cfg.Auth.OTPRequestWindow,
	})
	userService := service.NewUserService(userRepo, hasher, revocations, validate, logr, service.UserConfig{
		MinPasswordLength: cfg.Auth.MinPasswordLength,
		RevocationTTL:     cfg.JWT.RefreshExpiration,
	})

	cookies := session.NewCookieManager(session.CookieConfig{
		Domain:     cfg.Cookie.Domain,
		Secure:     cfg.Cookie.Secure,
		AccessTTL:  cfg.JWT.Expiration,
		RefreshTTL: cfg.JWT.RefreshExpiration,
	})

	deps := routerDeps{
		auth:    handler.NewAuthHandler(authService, cookies, cfg.Auth.LogoutRedirectURL),
		users:   handler.NewUserHandler(userService),
		ops:     handler.NewMetricsHandler(metrics, readinessChecks(db, redisClient)),
		gateway: authService,
		audit:   userRepo,
		metrics: metrics,
	}
	router := newRouter(cfg, logr, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type routerDeps struct {
	auth    *handler.AuthHandler
	users   *handler.UserHandler
	ops     *handler.MetricsHandler
	gateway *service.AuthService
	audit   *repository.UserRepository
	metrics *service.MetricsService
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", deps.ops.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	requireAuth := middleware.JWT(deps.gateway)

	auth := api.Group("/auth")
	auth.POST("/login", deps.auth.Login)
	auth.POST("/request-otp", deps.auth.RequestOTP)
	auth.POST("/verify-otp", deps.auth.VerifyOTP)
	auth.POST("/forgot-password", deps.auth.ForgotPassword)
	auth.POST("/reset-password", deps.auth.ResetPassword)
	auth.POST("/refresh", deps.auth.Refresh)
	auth.POST("/logout", deps.auth.Logout)
	auth.GET("/logout", deps.auth.Logout)
	auth.POST("/change-password", requireAuth, deps.auth.ChangePassword)
	auth.GET("/user", requireAuth, deps.auth.CurrentUser)

	users := api.Group("/users", requireAuth)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	users.GET("", adminOnly, deps.users.List)
	users.POST("", adminOnly, deps.users.Create)
	users.GET("/export", adminOnly, deps.users.Export)
	users.GET("/:id",
		middleware.RBAC(string(models.RoleAdmin), middleware.RoleSelf),
		middleware.Audit(deps.audit, logr, models.AuditActionUserView, "user"),
		deps.users.Get,
	)
	users.PATCH("/:id/status", adminOnly, deps.users.UpdateStatus)

	return r
}

func readinessChecks(db *sqlx.DB, client redis.UniversalClient) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{
		"database": db.PingContext,
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}
