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
	"github.com/groupavia/allotment-backend/internal/config"
	"github.com/groupavia/allotment-backend/internal/database"
	"github.com/groupavia/allotment-backend/internal/handlers"
	"github.com/groupavia/allotment-backend/internal/middleware"
	"github.com/groupavia/allotment-backend/internal/models"
	"github.com/groupavia/allotment-backend/internal/queue"
	"github.com/groupavia/allotment-backend/internal/services"
	"github.com/groupavia/allotment-backend/pkg/jwt"
	"github.com/jmoiron/sqlx"
	"github.com/mssola/user_agent"
	"github.com/sirupsen/logrus"
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

	logger.Info("Starting GroupAvia Allotment Backend")
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

	// Set Gin mode
	if cfg.Server.Environment == "production" {
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

	// Initialize repositories
	groupRepo := database.NewFlightGroupRepository(db)
	bucketRepo := database.NewSeatBucketRepository(db)
	bookingRepo := database.NewBookingRepository(db)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)

	assigner := services.NewIdentifierAssigner(
		bookingRepo,
		groupRepo,
		cfg.Booking.CodeLength,
		cfg.Booking.MaxCodeAttempts,
		services.RandomCode,
		logger,
	)

	// Broker is optional: without it booking events are logged only.
	var publisher services.EventPublisher
	if cfg.AMQP.Enabled {
		publisher = queue.NewPublisher(cfg.AMQP.URL, cfg.AMQP.QueueName, logger)
		logger.WithField("queue", cfg.AMQP.QueueName).Info("AMQP event publisher enabled")
	} else {
		logger.Info("AMQP disabled, booking events will be logged only")
	}
	notifier := services.NewNotificationService(publisher, cfg.Booking.NotifyBufferSize, logger)
	notifier.Start()

	bookingService := services.NewBookingService(
		db,
		groupRepo,
		bucketRepo,
		bookingRepo,
		assigner,
		notifier,
		services.BookingServiceConfig{
			HoldTTL:         cfg.Booking.HoldTTL,
			PaymentWindow:   cfg.Booking.PaymentWindow,
			DefaultCurrency: cfg.Booking.DefaultCurrency,
		},
		logger,
	)

	expiryService := services.NewExpiryService(bookingRepo, bookingService, logger)
	scheduler := services.NewSchedulerService(expiryService, cfg.Booking.SweepSchedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}
	logger.Info("Services initialized")

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	flightGroupHandler := handlers.NewFlightGroupHandler(groupRepo, bucketRepo, cfg.Booking.DefaultCurrency, logger)
	adminHandler := handlers.NewAdminHandler(scheduler, logger)

	// Initialize Gin router
	router := gin.New()
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
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(middleware.Authenticate(jwtService))
	{
		// Flight groups
		flightGroups := v1.Group("/flight-groups")
		{
			flightGroups.GET("", flightGroupHandler.List)
			flightGroups.GET("/:id", flightGroupHandler.Get)
			flightGroups.GET("/:id/availability", flightGroupHandler.Availability)

			operatorOnly := flightGroups.Group("")
			operatorOnly.Use(middleware.RequireRole(models.RoleOperator))
			{
				operatorOnly.POST("", flightGroupHandler.Create)
				operatorOnly.PATCH("/:id/status", flightGroupHandler.UpdateStatus)
			}
		}

		// Bookings
		bookings := v1.Group("/bookings")
		{
			bookings.POST("", bookingHandler.Create)
			bookings.GET("", bookingHandler.List)
			bookings.GET("/:id", bookingHandler.Get)
			bookings.POST("/:id/start-payment", bookingHandler.StartPayment)
			bookings.POST("/:id/cancel", bookingHandler.Cancel)

			operatorOnly := bookings.Group("")
			operatorOnly.Use(middleware.RequireRole(models.RoleOperator))
			{
				operatorOnly.POST("/:id/approve", bookingHandler.Approve)
				operatorOnly.POST("/:id/reject", bookingHandler.Reject)
				operatorOnly.POST("/:id/mark-paid", bookingHandler.MarkPaid)
				operatorOnly.POST("/:id/issue", bookingHandler.Issue)
			}
		}

		// Admin / maintenance
		admin := v1.Group("/admin")
		admin.Use(middleware.RequireRole(models.RoleOperator))
		{
			admin.POST("/expiry-sweep", adminHandler.TriggerExpirySweep)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// Drain pending booking events before exiting.
	notifier.Stop()

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		ua := user_agent.New(c.Request.UserAgent())
		browser, _ := ua.Browser()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"os":         ua.OS(),
			"browser":    browser,
		}
		if userID, exists := c.Get(middleware.ContextUserID); exists {
			fields["user_id"] = userID
		}
		if agencyID, exists := c.Get(middleware.ContextAgencyID); exists {
			fields["agency_id"] = agencyID
		}
		if role, exists := c.Get(middleware.ContextRole); exists {
			fields["role"] = role
		}

		entry := logger.WithFields(fields)
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
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
