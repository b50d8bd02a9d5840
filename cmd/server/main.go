// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/cambia-ar/internal/auth"
	"github.com/jason-s-yu/cambia-ar/internal/cache"
	"github.com/jason-s-yu/cambia-ar/internal/config"
	"github.com/jason-s-yu/cambia-ar/internal/database"
	"github.com/jason-s-yu/cambia-ar/internal/handlers"
	"github.com/jason-s-yu/cambia-ar/internal/middleware"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cfg, err := config.LoadServer()
	logger := config.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	issuer, err := auth.NewIssuer(cfg.TokenExpireTime)
	if err != nil {
		logger.Fatalf("auth: %v", err)
	}
	srv := handlers.NewTableServer(logger, issuer, cfg.EffectTimeout)

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		srv.History = cache.NewPublisher(rdb, cfg.QueueName)
		logger.Infof("Publishing actions to %s", cfg.QueueName)
	}
	if cfg.DatabaseURL != "" {
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("database: %v", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatalf("database: %v", err)
		}
		srv.Results = database.NewStore(pool)
	}

	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)
	mux.Handle("/ping", logged(http.HandlerFunc(handlers.PingHandler)))
	mux.Handle("/table/create", logged(handlers.CreateTableHandler(srv)))
	mux.Handle("/table/ws/", logged(handlers.TableWSHandler(logger, srv)))

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Infof("Running on %s", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
}
