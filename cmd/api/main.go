package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/renthive/renthive-backend/internal/booking"
	"github.com/renthive/renthive-backend/internal/config"
	"github.com/renthive/renthive-backend/internal/database"
	"github.com/renthive/renthive-backend/internal/handlers"
	"github.com/renthive/renthive-backend/internal/middleware"
	"github.com/renthive/renthive-backend/internal/models"
	"github.com/renthive/renthive-backend/internal/repository"
	"github.com/renthive/renthive-backend/internal/services"
	"github.com/renthive/renthive-backend/internal/worker"
	"github.com/renthive/renthive-backend/pkg/utils"
)

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database with better error handling
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	store := repository.NewGormStore(db)

	// Initialize WebSocket hub
	hub := services.NewHub()
	go hub.Run()

	// Redis is optional; a single instance delivers straight to its hub
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = services.InitRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to initialize Redis: %v", err)
		}
		defer redisClient.Close()
	}
	relay := services.NewRelay(redisClient, hub)
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Printf("Realtime relay stopped: %v", err)
		}
	}()

	// Initialize Firebase (optional - will log warning if not configured)
	push, err := services.InitFirebase(ctx, cfg.FirebaseServiceAccountPath)
	if err != nil {
		log.Printf("Firebase initialization warning: %v", err)
	}

	// Initialize Storage (S3 or local fallback)
	storage, err := services.InitStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	dispatcherOpts := services.DispatcherOptions{
		Store:    store,
		Realtime: relay,
		Logger:   logger.With("component", "notifier"),
	}
	if push.Enabled() {
		dispatcherOpts.Push = push
	}
	if mailer := utils.NewMailer(cfg.Mail, cfg.BaseURL); mailer.Enabled() {
		dispatcherOpts.Email = mailer
	} else {
		log.Println("SMTP not configured. Email notifications disabled")
	}
	if sms := utils.NewSMSClient(cfg.SMS); sms.Enabled() {
		dispatcherOpts.SMS = sms
	}
	dispatcher := services.NewDispatcher(dispatcherOpts)

	availability := services.NewAvailabilityCache(cfg.AvailabilityCacheTTL)
	defer availability.Stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	notifier := booking.MultiNotifier{availability, dispatcher}
	svc := booking.NewService(store,
		booking.WithNotifier(notifier),
		booking.WithMetrics(booking.NewMetrics(registry)),
		booking.WithLogger(logger.With("component", "booking")),
	)

	reconciler := worker.NewReconciler(svc, cfg.ReconcileInterval, logger)
	go reconciler.Run(ctx)

	// Initialize router
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", middleware.RequestIDHeader}
	r.Use(cors.New(corsConfig))

	// Serve uploaded images when S3 is not configured
	if !storage.IsUsingS3() {
		r.Static("/uploads", storage.UploadDir())
	}

	deps := map[string]handlers.Pinger{"database": sqlDB}
	if redisClient != nil {
		deps["redis"] = redisPinger{redisClient}
	}
	r.GET("/health", handlers.Health(deps))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	auth := middleware.AuthMiddleware(cfg.JWTSecret)
	vendorsOnly := middleware.RequireUserType(models.UserTypeVendor)

	// Routes
	api := r.Group("/api")
	{
		// Public routes
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", handlers.Register(db, cfg.JWTSecret))
			authRoutes.POST("/login", handlers.Login(db, cfg.JWTSecret))
		}

		listings := api.Group("/listings")
		{
			listings.GET("/:kind", handlers.GetListings(db))
			listings.GET("/:kind/:id", handlers.GetListing(store))
			listings.GET("/:kind/:id/availability", handlers.GetAvailability(svc, availability))

			listings.POST("/:kind", auth, vendorsOnly, handlers.CreateListing(store))
			listings.PUT("/:kind/:id", auth, vendorsOnly, handlers.UpdateListing(store, svc))
			listings.DELETE("/:kind/:id", auth, vendorsOnly, handlers.DeleteListing(store, svc, storage))
			listings.POST("/:kind/:id/images", auth, vendorsOnly, handlers.UploadListingImage(store, svc, storage))
		}

		// WebSocket connection
		api.GET("/ws", auth, handlers.WebSocketHandler(hub))

		// Protected routes
		protected := api.Group("/")
		protected.Use(auth)
		{
			users := protected.Group("/users")
			{
				users.GET("/profile", handlers.GetProfile(db))
				users.PUT("/profile", handlers.UpdateProfile(db))
			}

			applications := protected.Group("/applications")
			{
				applications.POST("", handlers.SubmitApplication(svc))
				applications.GET("/mine", handlers.GetMyApplications(svc))
				applications.GET("/received", handlers.GetReceivedApplications(svc))
				applications.GET("/received/export", handlers.ExportReceivedApplications(svc))
				applications.GET("/:id", handlers.GetApplication(svc))
				applications.PUT("/:id", handlers.EditApplication(svc))
				applications.POST("/:id/cancel", handlers.CancelApplication(svc))
				applications.POST("/:id/decision", handlers.DecideApplication(svc))
				applications.POST("/:id/pay", handlers.PayApplication(svc))
			}

			rentals := protected.Group("/rentals")
			{
				rentals.GET("", handlers.GetRentals(svc))
				rentals.POST("/:id/cancel", handlers.CancelRental(svc))
			}

			// Notification routes
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", handlers.GetNotifications(db))
				notifications.GET("/counts", handlers.GetCounts(svc))
				notifications.PATCH("/read-all", handlers.MarkAllNotificationsRead(db, dispatcher))
				notifications.PATCH("/:id/read", handlers.MarkNotificationRead(db, dispatcher))
				notifications.POST("/register-token", handlers.RegisterFCMToken(db))
				notifications.DELETE("/remove-token", handlers.RemoveFCMToken(db))

				// Notification preferences
				notifications.GET("/preferences", handlers.GetNotificationPreferences(db))
				notifications.PUT("/preferences", handlers.UpdateNotificationPreferences(db))
			}
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
	dispatcher.Wait()
	if err := sqlDB.Close(); err != nil {
		logger.Error("closing database", "error", err)
	}
}
