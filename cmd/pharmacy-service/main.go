package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/consumers"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/events"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/handler"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/repository"
	"github.com/pharmtrack/pharmtrack-backend/internal/pharmacy/service"
	"github.com/pharmtrack/pharmtrack-backend/pkg/auth"
	"github.com/pharmtrack/pharmtrack-backend/pkg/config"
	"github.com/pharmtrack/pharmtrack-backend/pkg/database"
	"github.com/pharmtrack/pharmtrack-backend/pkg/httputil"
	"github.com/pharmtrack/pharmtrack-backend/pkg/logger"
	"github.com/pharmtrack/pharmtrack-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("pharmacy-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("pharmacy-service", cfg.Server.Environment)
	log.Info().Msg("starting Pharmacy Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publisher
	publisher, err := events.NewPharmacyEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Initialize repositories
	medicineRepo := repository.NewMedicineRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	branchRepo := repository.NewBranchRepository(db)
	stockRepo := repository.NewStockRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	userCacheRepo := repository.NewUserCacheRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Initialize services
	catalogService := service.NewCatalogService(medicineRepo, batchRepo, branchRepo, log)
	stockService := service.NewStockService(stockRepo, medicineRepo, batchRepo, branchRepo, publisher, log)
	transferService := service.NewTransferService(db, transferRepo, stockRepo, medicineRepo, branchRepo, userCacheRepo, notificationRepo, publisher, log)

	// Initialize handlers
	medicineHandler := handler.NewMedicineHandler(catalogService, log)
	batchHandler := handler.NewBatchHandler(catalogService, log)
	branchHandler := handler.NewBranchHandler(catalogService, log)
	stockHandler := handler.NewStockHandler(stockService, log)
	transferHandler := handler.NewTransferHandler(transferService, log)
	notificationHandler := handler.NewNotificationHandler(notificationRepo, log)

	// Start user event consumer
	userConsumer, err := consumers.NewUserEventConsumer(rmq, userCacheRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := userConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start user event consumer")
	}

	// Start alert scheduler
	if cfg.Alerts.Enabled {
		scanner := service.NewAlertScanner(stockRepo, userCacheRepo, notificationRepo, publisher, log)
		scheduler := service.NewAlertScheduler(scanner, cfg.Alerts.ScanInterval, log)
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			// Localhost variations for development
			if origin == "http://localhost:3000" || origin == "http://localhost:5173" {
				return true
			}
			// *.pharmtrack.de for production
			if len(origin) > 14 && origin[len(origin)-14:] == ".pharmtrack.de" {
				return true
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(httputil.Auth(auth.NewManager(&cfg.JWT)))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "pharmacy-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1/pharmacy", func(r chi.Router) {
		// Medicine routes
		r.Route("/medicines", func(r chi.Router) {
			r.Get("/", medicineHandler.List)
			r.Post("/", medicineHandler.Create)
			r.Get("/{id}", medicineHandler.Get)
			r.Put("/{id}", medicineHandler.Update)
			r.Delete("/{id}", medicineHandler.Delete)
			r.Get("/{id}/batches", batchHandler.ListByMedicine)
			r.Post("/{id}/batches", batchHandler.Create)
		})

		// Batch routes
		r.Route("/batches", func(r chi.Router) {
			r.Get("/", batchHandler.List)
			r.Get("/expiring", batchHandler.Expiring)
			r.Get("/{id}", batchHandler.Get)
			r.Delete("/{id}", batchHandler.Delete)
		})

		// Branch routes
		r.Route("/branches", func(r chi.Router) {
			r.Get("/", branchHandler.List)
			r.Post("/", branchHandler.Create)
			r.Get("/main", branchHandler.GetMain)
			r.Get("/{id}", branchHandler.Get)
			r.Put("/{id}", branchHandler.Update)
			r.Put("/{id}/main", branchHandler.SetMain)
			r.Delete("/{id}", branchHandler.Delete)
		})

		// Stock routes
		r.Route("/stocks", func(r chi.Router) {
			r.Get("/", stockHandler.List)
			r.Post("/", stockHandler.Receive)
			r.Get("/quantity", stockHandler.Quantity)
			r.Get("/low", stockHandler.LowStock)
			r.Get("/expiring", stockHandler.Expiring)
			r.Get("/{id}", stockHandler.Get)
			r.Post("/{id}/adjust", stockHandler.Adjust)
			r.Delete("/{id}", stockHandler.Delete)
		})

		// Transfer routes
		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", transferHandler.List)
			r.Post("/", transferHandler.Execute)
			r.Post("/requests", transferHandler.CreateRequest)
			r.Get("/{id}", transferHandler.Get)
			r.Put("/{id}", transferHandler.Update)
			r.Post("/{id}/process", transferHandler.Process)
			r.Delete("/{id}", transferHandler.Delete)
		})

		// Notification routes
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.List)
			r.Get("/unread-count", notificationHandler.UnreadCount)
			r.Put("/{id}/read", notificationHandler.MarkRead)
			r.Put("/read-all", notificationHandler.MarkAllRead)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers and the scheduler
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
