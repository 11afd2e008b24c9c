package db

import (
	"context"
	"time"

	"tablero_total/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const connectTimeout = 10 * time.Second

// Connect opens the match history pool. The process cannot record matches
// without it, so any failure is fatal.
func Connect(dsn string) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Fatal("invalid DATABASE_URL", "error", err)
	}
	cfg.MaxConns = 8

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("match history pool", "error", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Fatal("match history database unreachable", "host", cfg.ConnConfig.Host, "error", err)
	}

	logger.Info("match history database connected", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)
	return pool
}
