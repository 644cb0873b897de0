package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	authzengine "github.com/Timi16/Teye-Contracts/internal/authz"
	"github.com/Timi16/Teye-Contracts/pkg/config"
	"github.com/Timi16/Teye-Contracts/pkg/logger"
	"github.com/Timi16/Teye-Contracts/pkg/monitoring"
	"github.com/Timi16/Teye-Contracts/pkg/store"
)

const serviceName = "authz-service"
const serviceVersion = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)
	log.WithField("version", serviceVersion).Info("Starting authorization service")

	// Initialize state store backend
	st, closeStore, health, err := openStore(cfg, log)
	if err != nil {
		log.WithError(err).Error("Failed to open state store")
		os.Exit(1)
	}
	defer closeStore()

	// Initialize metrics and health
	metrics := monitoring.NewMetricsCollector(serviceName)
	healthManager := monitoring.NewHealthManager(serviceName, serviceVersion)
	if health != nil {
		healthManager.RegisterChecker("store", monitoring.NewStoreHealthChecker(cfg.Store.Backend, health))
	}

	// Initialize engine and guarded service
	engine := authzengine.NewEngine(st, authzengine.SystemClock(), log.Logger, metrics)
	service := authzengine.NewService(engine, log)
	handlers := authzengine.NewHandlers(service, log)
	validator := authzengine.NewTokenValidator(cfg.JWT.SecretKey, cfg.JWT.Issuer, cfg.JWT.Audience)

	// Setup router
	router := mux.NewRouter()
	router.HandleFunc(cfg.Monitoring.HealthPath, healthManager.HTTPHandler()).Methods("GET")
	if cfg.Monitoring.Enabled {
		router.Handle(cfg.Monitoring.MetricsPath, metrics.Handler()).Methods("GET")
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Use(authzengine.RequestIDMiddleware)
	api.Use(metrics.HTTPMiddleware)
	api.Use(authzengine.AuthMiddleware(validator, log))
	handlers.RegisterRoutes(api)

	// Setup HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.WithField("address", server.Addr).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("Failed to start HTTP server")
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down authorization service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
		os.Exit(1)
	}

	log.Info("Authorization service stopped")
}

// openStore builds the configured state store backend. The returned close
// function is a no-op for the memory backend.
func openStore(cfg *config.Config, log *logger.Logger) (store.Store, func(), monitoring.Pinger, error) {
	switch cfg.Store.Backend {
	case "memory":
		log.Info("Using in-memory state store")
		return store.NewMemory(), func() {}, nil, nil

	case "postgres":
		pg, err := store.OpenPostgres(&store.PostgresConfig{
			Host:            cfg.Database.Host,
			Port:            cfg.Database.Port,
			Name:            cfg.Database.Name,
			User:            cfg.Database.User,
			Password:        cfg.Database.Password,
			SSLMode:         cfg.Database.SSLMode,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		if err := pg.EnsureSchema(context.Background()); err != nil {
			pg.Close()
			return nil, nil, nil, err
		}
		log.Info("Using Postgres state store")
		return pg, func() { pg.Close() }, pg, nil

	case "redis":
		rd, err := store.OpenRedis(context.Background(), &store.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("Using Redis state store")
		return rd, func() { rd.Close() }, rd, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}
