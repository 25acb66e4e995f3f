package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/leappulse/pulse/internal/config"
	"github.com/leappulse/pulse/internal/dashboard"
	"github.com/leappulse/pulse/internal/models"
	"github.com/leappulse/pulse/internal/notifications"
	"github.com/leappulse/pulse/internal/realtime"
	"github.com/leappulse/pulse/internal/scheduler"
	"github.com/leappulse/pulse/internal/server"
	"github.com/leappulse/pulse/internal/sources"
	"github.com/leappulse/pulse/internal/storage"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Infof("Starting %s brand pulse dashboard", cfg.BrandName)

	ctx := context.Background()

	// Connect to the realtime database
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = storage.NewPostgresPool(ctx, cfg.DatabaseURL, storage.PoolConfig{MaxConns: cfg.DatabaseMaxConns})
		if err != nil {
			// The primary origin may still answer
			logrus.Errorf("Realtime database unavailable: %v", err)
			pool = nil
		} else {
			defer pool.Close()
		}
	}

	normalize := sources.NormalizeOptions{PriorityMode: cfg.PriorityMode}

	// Initialize live origins
	opts := dashboard.Options{
		Primary:        sources.NewAPIOrigin(cfg.APIBaseURL, cfg.APITimeout, normalize),
		RefreshTimeout: cfg.RefreshTimeout,
	}
	if pool != nil {
		opts.Secondary = sources.NewDatabaseOrigin(pool, cfg.DatabaseSchema, normalize)
	}

	// Initialize push subscription
	subscriber, natsConn, err := newSubscriber(cfg, pool)
	if err != nil {
		logrus.Errorf("Push notifications disabled: %v", err)
	}
	if natsConn != nil {
		defer natsConn.Close()
	}
	if subscriber != nil {
		opts.Subscriber = subscriber
	}

	// Initialize notification services
	if cfg.NotificationsEnabled() {
		opts.Notifier = notifications.NewService(cfg)
	}

	// Initialize metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts.Metrics = dashboard.NewMetrics(registry)

	// Initialize dashboard controller
	controller := dashboard.NewController(opts)
	if _, err := controller.Start(ctx, models.DataSource(cfg.DataSource)); err != nil {
		logrus.Fatalf("Failed to start dashboard controller: %v", err)
	}

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg, controller)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      server.New(cfg, controller, registry).Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RefreshTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Closing the controller ends every stream so Shutdown does not wait on them
	schedulerService.Stop()
	if err := controller.Close(); err != nil {
		logrus.Errorf("Failed to close dashboard controller: %v", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

// newSubscriber selects the push channel. The returned NATS connection, if
// any, must be closed by the caller.
func newSubscriber(cfg *config.Config, pool *pgxpool.Pool) (realtime.Subscriber, *nats.Conn, error) {
	switch cfg.PushChannel {
	case config.PushChannelPostgres:
		if pool == nil {
			return nil, nil, fmt.Errorf("realtime database is not connected")
		}
		return realtime.NewPostgresSubscriber(pool, cfg.DatabaseSchema), nil, nil

	case config.PushChannelNATS:
		conn, err := realtime.Connect(cfg.NATSURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		return realtime.NewNATSSubscriber(conn, cfg.NATSSubjectPrefix, cfg.DatabaseSchema), conn, nil
	}

	logrus.Info("No push channel configured, live data refreshes on demand only")
	return nil, nil, nil
}
