package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"phonepe-service/internal/config"
	"phonepe-service/internal/events"
	"phonepe-service/internal/handlers"
	"phonepe-service/internal/middleware"
	"phonepe-service/internal/models"
	"phonepe-service/internal/phonepe"
	"phonepe-service/internal/repository"
	"phonepe-service/internal/services"
	"phonepe-service/internal/tokenstore"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to database")
	}
	if err := db.AutoMigrate(&models.TransactionRecord{}); err != nil {
		logger.WithError(err).Fatal("failed to run migrations")
	}

	store, err := tokenstore.New(cfg.TokenCachePath, cfg.TokenCacheKey)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize token store")
	}

	tokens := phonepe.NewTokenSource(cfg, store, logger)
	client := phonepe.NewClient(cfg, tokens)
	repo := repository.NewTransactionRepository(db)

	var listener events.Listener = events.NewLogListener(logger)
	if cfg.NATSURL != "" {
		publisher, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to NATS")
		}
		defer publisher.Close()
		listener = publisher
	}

	paymentService := services.NewPaymentService(cfg, client, repo, logger)
	webhookService := services.NewWebhookService(cfg, repo, listener, logger)

	paymentHandler := handlers.NewPaymentHandler(paymentService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)

	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestAudit(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.ValidateRequest())

	limits := middleware.NewRateLimits()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "healthy", "service": "phonepe-service"})
	})

	api := router.Group("/api/v1/payments")
	api.Use(middleware.RateLimitMiddleware(limits.API))
	{
		api.POST("/initiate", middleware.RateLimitMiddleware(limits.Payments), paymentHandler.InitiatePayment)
		api.GET("/:merchantOrderId/status", paymentHandler.CheckStatus)
		api.POST("/:merchantOrderId/refund", middleware.RateLimitMiddleware(limits.Payments), paymentHandler.Refund)
	}

	webhooks := router.Group("/webhooks")
	webhooks.Use(middleware.RateLimitMiddleware(limits.Webhook))
	{
		webhooks.POST("/phonepe", webhookHandler.HandlePhonePeWebhook)
	}

	logger.WithFields(logrus.Fields{
		"port": cfg.Port,
		"env":  cfg.Environment,
	}).Info("starting phonepe service")
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}
