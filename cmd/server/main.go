package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/staynest/hostel-booking-backend/internal/config"
	"github.com/staynest/hostel-booking-backend/internal/database"
	"github.com/staynest/hostel-booking-backend/internal/handlers"
	"github.com/staynest/hostel-booking-backend/internal/middleware"
	"github.com/staynest/hostel-booking-backend/internal/models"
	"github.com/staynest/hostel-booking-backend/internal/services"
	"github.com/staynest/hostel-booking-backend/pkg/jwt"
	"github.com/staynest/hostel-booking-backend/pkg/payment"
	"github.com/staynest/hostel-booking-backend/pkg/sms"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting StayNest Hostel Booking Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logLevel)

	// Set Gin mode
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := database.ApplySchema(ctx, db)
		cancel()
		if err != nil {
			logger.Fatalf("Failed to apply schema: %v", err)
		}
		logger.Info("Database schema applied")
	}

	store := database.NewPostgresStore(db, logger)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	gateway := services.NewRetryingGateway(
		payment.NewClient(payment.Config{
			BaseURL:   cfg.Payment.BaseURL,
			KeyID:     cfg.Payment.KeyID,
			KeySecret: cfg.Payment.KeySecret,
			Timeout:   cfg.Payment.RequestTimeout,
		}),
		services.RetryPolicy{
			MaxRetries:      cfg.Payment.MaxRetries,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			MaxElapsed:      cfg.Payment.MaxRetryElapsed,
		},
		logger,
	)
	verifier := services.NewPaymentVerifier(cfg.Payment.KeySecret, cfg.Payment.WebhookSecret)
	if cfg.Payment.WebhookSecret == "" {
		logger.Warn("PAYMENT_WEBHOOK_SECRET not set - payment webhooks will be rejected")
	}

	// Webhook de-duplication (optional)
	var dedupe services.EventDeduplicator
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatalf("Invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable at startup - webhook dedupe will retry per request")
		}
		cancel()
		dedupe = services.NewRedisEventDeduplicator(redisClient, cfg.Redis.WebhookDedupeTTL)
		logger.Info("Webhook de-duplication enabled (Redis)")
	} else {
		logger.Info("REDIS_URL not set - webhook de-duplication disabled")
	}

	// Initialize SMS gateway
	var smsGateway sms.SMSGateway
	if cfg.SMS.Mode == "production" {
		logger.Info("Initializing HTTP SMS gateway in production mode...")
		smsGateway = sms.NewHTTPGateway(sms.HTTPConfig{
			APIURL:   cfg.SMS.APIURL,
			APIKey:   cfg.SMS.APIKey,
			SenderID: cfg.SMS.SenderID,
		})
	} else {
		logger.Info("SMS gateway in development mode (messages are logged, not sent)")
		smsGateway = sms.NewLogGateway(logger)
	}

	notifier := services.NewNotificationEmitter(
		cfg.Booking.NotifyTimeout,
		logger,
		services.NewLogNotifier(logger),
		services.NewSMSNotifier(smsGateway),
	)

	lifecycle := services.NewBookingLifecycleService(
		store,
		services.NewPricingCalculator(),
		services.NewRefundPolicy(),
		verifier,
		gateway,
		notifier,
		dedupe,
		services.BookingLifecycleConfig{
			ConfirmationWindow: cfg.Booking.ConfirmationWindow,
			PaymentWindow:      cfg.Booking.PaymentWindow,
			NoShowGrace:        cfg.Booking.NoShowGrace,
			Currency:           cfg.Payment.Currency,
			PaymentKeyID:       cfg.Payment.KeyID,
			VerifyWithFetch:    cfg.Payment.VerifyWithFetch,
		},
		logger,
	)
	refundProcessor := services.NewRefundProcessor(store, gateway, notifier, cfg.Booking.RefundBatchSize, logger)
	reconciler := services.NewInventoryReconciler(store, logger)
	expiration := services.NewBookingExpirationService(lifecycle, cfg.Booking.SweepBatchSize, logger)

	// Initialize and start cron service
	cronService := services.NewCronService(
		services.CronSchedules{
			ExpirySweep:    cfg.Booking.SweepSchedule,
			RefundRun:      cfg.Booking.RefundSchedule,
			Reconciliation: cfg.Booking.ReconcileSchedule,
		},
		expiration,
		refundProcessor,
		reconciler,
		logger,
	)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.Info("Cron service started - expiry sweep, refunds and reconciliation enabled")

	logger.Info("Services initialized")

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(lifecycle, logger)
	webhookHandler := handlers.NewWebhookHandler(lifecycle, logger)
	adminHandler := handlers.NewAdminHandler(cronService, refundProcessor, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db, redisClient))

	registerRoutes(router, jwtService, bookingHandler, webhookHandler, adminHandler)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop cron service
	logger.Info("Stopping cron service...")
	cronService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// Let in-flight notifications finish
	notifier.Wait()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close Redis client")
		}
	}

	logger.Info("Server exited successfully")
}

func registerRoutes(
	router *gin.Engine,
	jwtService *jwt.Service,
	bookingHandler *handlers.BookingHandler,
	webhookHandler *handlers.WebhookHandler,
	adminHandler *handlers.AdminHandler,
) {
	owners := middleware.RequireRole(models.ActorRoleOwner, models.ActorRoleAdmin)
	students := middleware.RequireRole(models.ActorRoleStudent)

	v1 := router.Group("/api/v1")
	{
		// Public routes
		v1.POST("/webhooks/payment", webhookHandler.PaymentWebhook)
		v1.POST("/refunds/quote", bookingHandler.QuoteRefund)

		// Booking routes (protected)
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		{
			bookings.POST("", students, bookingHandler.CreateBooking)
			bookings.GET("/mine", students, bookingHandler.GetMyBookings)
			bookings.GET("/:id", bookingHandler.GetBooking)
			bookings.POST("/:id/cancel", bookingHandler.CancelBooking)

			// Payment
			bookings.POST("/:id/payment/order", students, bookingHandler.CreatePaymentOrder)
			bookings.POST("/:id/payment/verify", students, bookingHandler.VerifyPayment)

			// Owner decisions and occupancy
			bookings.POST("/:id/confirm", middleware.RequireRole(models.ActorRoleOwner), bookingHandler.ConfirmBooking)
			bookings.POST("/:id/reject", middleware.RequireRole(models.ActorRoleOwner), bookingHandler.RejectBooking)
			bookings.POST("/:id/check-in", owners, bookingHandler.CheckIn)
			bookings.POST("/:id/activate", owners, bookingHandler.Activate)
			bookings.POST("/:id/check-out", owners, bookingHandler.CheckOut)
			bookings.POST("/:id/complete", owners, bookingHandler.Complete)
		}

		// Hostel routes (protected)
		hostels := v1.Group("/hostels")
		hostels.Use(middleware.AuthMiddleware(jwtService))
		{
			hostels.GET("/:id/inventory", bookingHandler.GetInventory)
			hostels.GET("/:id/bookings", owners, bookingHandler.GetHostelBookings)
			hostels.PUT("/:id/inventory/:room_type", owners, bookingHandler.SetInventory)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService), middleware.RequireRole(models.ActorRoleAdmin))
		{
			admin.GET("/jobs/status", adminHandler.GetJobStatus)
			admin.POST("/jobs/expire-bookings", adminHandler.RunExpireBookings)
			admin.POST("/jobs/process-refunds", adminHandler.RunProcessRefunds)
			admin.POST("/jobs/reconcile-inventory", adminHandler.RunReconcileInventory)
			admin.POST("/refunds/:id/retry", adminHandler.RetryRefund)
		}
	}
}

// requestLogger logs each request with its latency and outcome
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      c.Request.URL.RawQuery,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}

		// Add user context if available
		if userID, exists := c.Get("user_id"); exists {
			fields["user_id"] = userID
		}
		if role, exists := c.Get("role"); exists {
			fields["role"] = role
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		redisStatus := "disabled"
		if redisClient != nil {
			redisStatus = "healthy"
			if err := redisClient.Ping(ctx).Err(); err != nil {
				redisStatus = "degraded"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"redis":     redisStatus,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
