package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	httpAdapter "github.com/lorrc/front-desk-backend/internal/adapters/primary/http"
	mw "github.com/lorrc/front-desk-backend/internal/adapters/primary/http/middleware"
	"github.com/lorrc/front-desk-backend/internal/adapters/secondary/postgres"
	"github.com/lorrc/front-desk-backend/internal/config"
	"github.com/lorrc/front-desk-backend/internal/core/services"
	"github.com/lorrc/front-desk-backend/internal/infrastructure/logging"
	"github.com/lorrc/front-desk-backend/internal/realtime"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Initialize Database Pool
	ctx := context.Background()
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	// Apply database configuration
	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	// 4. Initialize Real-time Components
	hub := realtime.NewHub(logger, cfg.Realtime.SendBuffer)
	sseHandler := realtime.NewSSEHandler(hub, cfg.Realtime.KeepAlive, logger)
	wsHandler := realtime.NewWSHandler(hub, realtime.WSConfig{
		AllowedOrigins:  cfg.Realtime.AllowedOrigins,
		ReadBufferSize:  cfg.Realtime.ReadBufferSize,
		WriteBufferSize: cfg.Realtime.WriteBufferSize,
		AllowAllOrigins: cfg.IsDevelopment(),
	}, logger)

	// 5. Initialize Rate Limiters
	var generalRateLimiter, publicRateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		generalRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})

		publicRateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.PublicRPS,
			BurstSize:         cfg.RateLimit.PublicBurst,
			CleanupInterval:   time.Minute,
			TTL:               5 * time.Minute,
		})
	}

	// 6. Dependency Injection (Wiring the Hexagon)

	// Error Handler
	errorHandler := httpAdapter.NewErrorHandler(logger)

	// Repository and transaction manager (Secondary Adapters)
	ticketRepo := postgres.NewTicketRepository(pool, logger)
	txManager := postgres.NewTransactionManager(pool)

	// Services (Core)
	queueService := services.NewQueueService(ticketRepo, txManager, hub)
	snapshotService := services.NewSnapshotService(ticketRepo)

	// Handlers (Primary Adapters)
	ticketHandler := httpAdapter.NewTicketHandler(queueService, errorHandler, logger)
	queueHandler := httpAdapter.NewQueueHandler(queueService, snapshotService, errorHandler, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, cfg.App.Version)

	staffOnly := mw.StaffKey(cfg.Staff.Key, logger)

	// 7. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", mw.StaffKeyHeader, mw.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Apply general rate limiting if enabled
	if generalRateLimiter != nil {
		r.Use(generalRateLimiter.Middleware)
	}

	// Health check endpoints (outside /api/v1 for standard probe paths)
	healthHandler.RegisterRoutes(r)

	// Event streams. SSE is the primary transport; the websocket endpoint
	// serves dashboard clients that keep a duplex connection open.
	r.Get("/events", sseHandler.ServeHTTP)
	r.Get("/ws", wsHandler.ServeHTTP)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public projection routes
		queueHandler.RegisterPublicRoutes(r)

		// Ticket routes: public lifecycle with stricter rate limiting on
		// creation, staff overrides behind the shared key
		r.Route("/tickets", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if publicRateLimiter != nil {
					r.Use(publicRateLimiter.Middleware)
				}
				r.Post("/", ticketHandler.HandleCreateTicket)
			})
			r.Get("/{ticketID}", ticketHandler.HandleGetTicket)
			r.Post("/{ticketID}/request-cancel", ticketHandler.HandleRequestCancel)

			r.Group(func(r chi.Router) {
				r.Use(staffOnly)
				ticketHandler.RegisterStaffRoutes(r)
			})
		})

		// Staff dispatch behind the shared key
		r.Group(func(r chi.Router) {
			r.Use(staffOnly)
			queueHandler.RegisterStaffRoutes(r)
		})
	})

	// 8. Start Server with Graceful Shutdown
	// WriteTimeout stays off: a fixed deadline would cut long-lived SSE
	// streams. Handlers bound their own writes.
	srv := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Graceful shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	// Drain in-flight event broadcasts before exiting
	queueService.Shutdown()

	logger.Info("server shutdown complete")
}
