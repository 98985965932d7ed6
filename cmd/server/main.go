package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/mfsilva/order-ledger/internal/adapter/handler"
	"github.com/mfsilva/order-ledger/internal/adapter/inventory"
	"github.com/mfsilva/order-ledger/internal/adapter/messaging"
	"github.com/mfsilva/order-ledger/internal/adapter/storage"
	"github.com/mfsilva/order-ledger/internal/config"
	"github.com/mfsilva/order-ledger/internal/core/service"
)

const eventBufferSize = 1024

func main() {
	cfg := config.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zlog.Logger = zlog.With().Str("service", cfg.ServiceName).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to open mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		zlog.Fatal().Err(err).Msg("failed to ping mysql")
	}
	zlog.Info().Msg("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, PoolSize: 100})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Fatal().Err(err).Msg("failed to connect redis")
	}
	zlog.Info().Msg("connected to redis")

	// Adapters
	orderStore := storage.NewMySQLOrderStore(db)
	idemStore := storage.NewRedisIdempotencyStore(rdb)
	inventoryClient := inventory.NewHTTPClient(cfg.InventoryBaseURL, cfg.InventoryTimeout)

	publisher := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, eventBufferSize)
	publisher.Start(ctx)

	// Core
	guard := service.NewReconciliationGuard(inventoryClient, idemStore, cfg.GuardMaxAttempts, cfg.GuardBaseBackoff)
	orderService := service.NewOrderService(orderStore, inventoryClient, guard, publisher, cfg.ServiceName, cfg.AdjustTimeout)

	reconciler := service.NewReconciler(orderStore, guard, publisher, cfg.ServiceName, cfg.ReconcileInterval, cfg.ReconcileGrace)
	go reconciler.Start(ctx)
	zlog.Info().Dur("interval", cfg.ReconcileInterval).Msg("reconciler started")

	// HTTP
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	handler.NewOrderHandler(orderService).Register(r)

	httpServer := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		zlog.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			zlog.Error().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Err(err).Msg("http server shutdown failed")
	}
	zlog.Info().Msg("http server stopped")

	// Stops the reconciler and flushes buffered events.
	cancel()
	publisher.WaitClosed()
	zlog.Info().Msg("event publisher flushed")

	if err := rdb.Close(); err != nil {
		zlog.Error().Err(err).Msg("redis close failed")
	}
	if err := db.Close(); err != nil {
		zlog.Error().Err(err).Msg("mysql close failed")
	}
	zlog.Info().Msg("connections closed")
}
