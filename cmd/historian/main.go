// cmd/historian is an asynchronous historian service that pops action records from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/cambia-ar/internal/cache"
	"github.com/jason-s-yu/cambia-ar/internal/config"
	"github.com/jason-s-yu/cambia-ar/internal/database"
	"github.com/jason-s-yu/cambia-ar/internal/historian"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cfg, err := config.LoadHistorian()
	logger := config.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatalf("database: %v", err)
	}

	svc := historian.NewService(rdb, database.NewStore(pool), historian.Options{
		QueueName:  cfg.QueueName,
		BatchSize:  cfg.BatchSize,
		FlushDelay: cfg.FlushDelay,
		PopTimeout: cfg.PopTimeout,
		Inactivity: cfg.Inactivity,
	}, logger)

	logger.Info("cambia-ar historian started.")
	if err := svc.Run(ctx); err != nil {
		logger.Errorf("historian stopped: %v", err)
	}
	logger.Info("Historian shutdown complete.")
}
