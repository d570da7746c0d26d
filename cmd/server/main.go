package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/keyline/license-backoffice/internal/config"
	"github.com/keyline/license-backoffice/internal/domain/apikey"
	"github.com/keyline/license-backoffice/internal/generator"
	"github.com/keyline/license-backoffice/internal/handler"
	"github.com/keyline/license-backoffice/internal/handler/middleware"
	"github.com/keyline/license-backoffice/internal/ierr"
	"github.com/keyline/license-backoffice/internal/service"
	"github.com/keyline/license-backoffice/internal/storage/memstorage"
	"github.com/keyline/license-backoffice/internal/storage/postgres"
	"github.com/keyline/license-backoffice/internal/storage/redis"
	"github.com/keyline/license-backoffice/internal/worker"
	"github.com/keyline/license-backoffice/pkg/clock"
	"github.com/keyline/license-backoffice/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "./configs/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewZapLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	sugarLogger := appLogger.Sugar()

	sugarLogger.Info("Starting application...")
	sugarLogger.Infof("Log level set to: %s", cfg.Log.Level)

	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := postgres.NewPgxPool(appCtx, &cfg.Database, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer dbPool.Close()

	redisClient, err := redis.NewRedisClient(appCtx, &cfg.Redis, appLogger)
	if err != nil {
		sugarLogger.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	appClock := clock.Real()
	dataStore := postgres.NewStore(dbPool, appLogger)
	validationCache := redis.NewValidationCache(redisClient, cfg.Cache.ValidationTTL, appLogger)
	userRepoMock := memstorage.NewUserRepositoryMock()
	apiKeyRepo := postgres.NewAPIKeyRepository(dbPool, appLogger)

	keyService := service.NewKeyManagementService(dataStore, cfg.Signing.DefaultKeyBits, cfg.Signing.Passphrase, appLogger)
	generators := generator.NewFactory(keyService, appLogger)
	ruleEngine := service.NewRuleEngine(dataStore, service.RuleSetFull, appClock, appLogger)
	licenseService := service.NewLicenseService(dataStore, generators, ruleEngine, validationCache, appClock, appLogger)
	activationService := service.NewActivationService(dataStore, licenseService, validationCache, appClock, appLogger)
	exportService := service.NewExportService(dataStore, appClock, appLogger)
	catalogService := service.NewCatalogService(dataStore, appLogger)
	auditService := service.NewAuditService(dataStore, appLogger)
	authService := service.NewAuthService(userRepoMock, cfg.JWT.Secret, cfg.JWT.TokenTTL, appClock, appLogger)
	apiKeyService := service.NewAPIKeyService(apiKeyRepo, appLogger)

	healthHandler := handler.NewHealthHandler(dbPool, redisClient, appLogger)
	licenseHandler := handler.NewLicenseHandler(licenseService, exportService, appLogger)
	activationHandler := handler.NewActivationHandler(activationService, appLogger)
	productHandler := handler.NewProductHandler(catalogService, keyService, appLogger)
	consumerHandler := handler.NewConsumerHandler(catalogService, appLogger)
	auditHandler := handler.NewAuditHandler(auditService, appLogger)
	authHandler := handler.NewAuthHandler(authService, appLogger)
	dashboardHandler := handler.NewDashboardHandler(licenseService, appLogger)
	apiKeyHandler := handler.NewAPIKeyHandler(apiKeyService, appLogger)

	authMiddleware := middleware.JWTAuthMiddleware(authService, appLogger)
	validateKeyAuth := middleware.APIKeyAuthMiddleware(apiKeyRepo, apikey.ScopeValidate, appLogger)
	activateKeyAuth := middleware.APIKeyAuthMiddleware(apiKeyRepo, apikey.ScopeActivate, appLogger)
	errorMiddleware := middleware.ErrorHandlerMiddleware(appLogger)

	router := gin.New()
	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logMsg := "Panic recovered"
		if err, ok := recovered.(string); ok {
			logMsg = fmt.Sprintf("%s: %s", logMsg, err)
		} else if err, ok := recovered.(error); ok {
			logMsg = fmt.Sprintf("%s: %v", logMsg, err)
		}
		appLogger.Error(logMsg, zap.Stack("stack"))

		_ = c.Error(ierr.ErrInternalServer)
		c.Abort()
	}))

	corsConfig := cors.Config{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-API-Key",
		},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))
	router.Use(errorMiddleware)

	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRoutes := router.Group("/api/v1/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
	}

	apiV1 := router.Group("/api/v1")
	{
		licenseRoutes := apiV1.Group("/licenses")
		{
			// Machine-facing endpoints authenticate with API keys.
			licenseRoutes.POST("/validate", validateKeyAuth, licenseHandler.Validate)
			licenseRoutes.POST("/validate/enhanced", validateKeyAuth, licenseHandler.ValidateEnhanced)

			licenseRoutes.Use(authMiddleware)

			licenseRoutes.POST("", licenseHandler.Generate)
			licenseRoutes.GET("", licenseHandler.List)
			licenseRoutes.GET("/lookup/:keyOrCode", licenseHandler.GetByKeyOrCode)
			licenseRoutes.GET("/:id", licenseHandler.Get)
			licenseRoutes.PATCH("/:id", licenseHandler.Update)
			licenseRoutes.DELETE("/:id", licenseHandler.Delete)
			licenseRoutes.POST("/:id/activate", licenseHandler.Activate)
			licenseRoutes.POST("/:id/suspend", licenseHandler.Suspend)
			licenseRoutes.POST("/:id/revoke", licenseHandler.Revoke)
			licenseRoutes.POST("/:id/renew", licenseHandler.Renew)
			licenseRoutes.POST("/:id/regenerate-key", licenseHandler.RegenerateKey)
			licenseRoutes.GET("/:id/export", licenseHandler.Export)
		}

		activationRoutes := apiV1.Group("/activations")
		{
			activationRoutes.POST("/activate", activateKeyAuth, activationHandler.Activate)
			activationRoutes.POST("/deactivate", activateKeyAuth, activationHandler.Deactivate)
			activationRoutes.POST("/validate", validateKeyAuth, activationHandler.Validate)

			activationRoutes.Use(authMiddleware)
			activationRoutes.POST("/keys", activationHandler.CreateProductKey)
			activationRoutes.GET("", activationHandler.List)
			activationRoutes.GET("/:signature", activationHandler.Get)
		}

		productRoutes := apiV1.Group("/products")
		{
			// Offline checkers fetch verification keys anonymously.
			productRoutes.GET("/:id/keys/public", productHandler.PublicKey)

			productRoutes.Use(authMiddleware)
			productRoutes.POST("", productHandler.Create)
			productRoutes.GET("", productHandler.List)
			productRoutes.GET("/:id", productHandler.Get)
			productRoutes.PATCH("/:id", productHandler.Update)
			productRoutes.POST("/:id/keys", productHandler.GenerateKeys)
			productRoutes.POST("/:id/keys/rotate", productHandler.RotateKeys)
		}

		consumerRoutes := apiV1.Group("/consumers")
		consumerRoutes.Use(authMiddleware)
		{
			consumerRoutes.POST("", consumerHandler.Create)
			consumerRoutes.GET("", consumerHandler.List)
			consumerRoutes.GET("/:id", consumerHandler.Get)
			consumerRoutes.PATCH("/:id", consumerHandler.Update)
		}

		auditRoutes := apiV1.Group("/audit")
		auditRoutes.Use(authMiddleware)
		{
			auditRoutes.GET("", auditHandler.List)
		}

		dashboardRoutes := apiV1.Group("/dashboard")
		dashboardRoutes.Use(authMiddleware)
		{
			dashboardRoutes.GET("/summary", dashboardHandler.Summary)
		}

		apiKeyRoutes := apiV1.Group("/apikeys")
		apiKeyRoutes.Use(authMiddleware)
		{
			apiKeyRoutes.POST("", apiKeyHandler.Create)
			apiKeyRoutes.GET("", apiKeyHandler.List)
			apiKeyRoutes.DELETE("/:id", apiKeyHandler.Revoke)
		}
	}

	g, groupCtx := errgroup.WithContext(appCtx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		sugarLogger.Infof("HTTP server listening on port %s", cfg.Server.Port)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugarLogger.Errorf("HTTP server ListenAndServe error: %v", err)
			return fmt.Errorf("http server failed: %w", err)
		}
		sugarLogger.Info("HTTP server stopped listening.")
		return nil
	})

	g.Go(func() error {
		<-groupCtx.Done()
		sugarLogger.Info("Shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			sugarLogger.Errorf("HTTP server graceful shutdown failed: %v", err)
			return fmt.Errorf("http server shutdown error: %w", err)
		}
		sugarLogger.Info("HTTP server shutdown complete.")
		return nil
	})

	workerErrChan, workerShutdown := worker.RunWorkers(cfg, dataStore, validationCache, appClock, appLogger)

	g.Go(func() error {
		select {
		case err := <-workerErrChan:
			return fmt.Errorf("asynq worker error: %w", err)
		case <-groupCtx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownPeriod)
			defer cancel()
			workerShutdown(shutdownCtx)
			sugarLogger.Info("Asynq workers finished gracefully.")
			return nil
		}
	})

	sugarLogger.Info("Application started. Waiting for interrupt signal (Ctrl+C) or component error...")

	waitErr := g.Wait()

	sugarLogger.Info("Shutdown sequence finished.")

	if waitErr != nil {
		if errors.Is(waitErr, context.Canceled) {
			sugarLogger.Info("Shutdown reason: Context canceled (likely due to OS signal).")
		} else if errors.Is(waitErr, http.ErrServerClosed) {
			sugarLogger.Info("Shutdown reason: HTTP server closed normally.")
		} else {
			sugarLogger.Errorf("Application shutdown finished with unexpected error: %v", waitErr)
		}
	} else {
		sugarLogger.Info("Application shutdown successfully (all components finished without errors).")
	}

	sugarLogger.Info("Application exiting now.")
}
