package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tablero_total/internal/config"
	"tablero_total/internal/db"
	"tablero_total/internal/events"
	httpServer "tablero_total/internal/http"
	"tablero_total/internal/logger"
	"tablero_total/internal/ratelimit"
	"tablero_total/internal/repository"
	"tablero_total/internal/room"
	"tablero_total/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	var (
		dbPool *pgxpool.Pool
		store  service.MatchStore
	)
	if cfg.DatabaseURL != "" {
		dbPool = db.Connect(cfg.DatabaseURL)
		defer dbPool.Close()
		store = repository.NewMatchRepository(dbPool)
	} else {
		logger.Warn("DATABASE_URL is not set, match history disabled")
	}

	var publisher service.MatchPublisher
	if cfg.NatsURL != "" {
		pub, err := events.Connect(cfg.NatsURL, cfg.NatsSubject)
		if err != nil {
			logger.Fatal("nats connect failed", "error", err)
		}
		defer pub.Close()
		publisher = pub
	}

	matches := service.NewMatchService(store, publisher)
	registry := room.NewRegistry(cfg.Room, clockwork.NewRealClock(), matches)

	rdb := ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if rdb != nil {
		defer rdb.Close()
	}
	limiter := ratelimit.New(rdb)

	if cfg.JWTSecret == "" {
		logger.Info("JWT_SECRET is not set, every connection gets an anonymous id")
	}

	r := gin.New()
	r.Use(gin.Recovery())

	httpServer.RegisterRoutes(r, httpServer.Deps{
		DB:            dbPool,
		Registry:      registry,
		Matches:       matches,
		JWT:           service.NewJWT(cfg.JWTSecret),
		Limiter:       limiter,
		Version:       version,
		AllowedOrigin: cfg.AllowedOrigin,
		APIRateLimit:  cfg.APIRateLimit,
		APIRateWindow: cfg.APIRateWindow,
		WSRateLimit:   cfg.WSRateLimit,
		WSRateWindow:  cfg.WSRateWindow,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	registry.Shutdown()

	logger.Info("server exited", "rooms", registry.Len())
}
