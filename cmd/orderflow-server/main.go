package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fintools-ai/mcp-order-flow-server/internal/config"
	"github.com/fintools-ai/mcp-order-flow-server/internal/httpapi"
	"github.com/fintools-ai/mcp-order-flow-server/internal/ingest"
	"github.com/fintools-ai/mcp-order-flow-server/internal/orderflow"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional, defaults applied otherwise)")
	feedURL := flag.String("feed", "", "websocket URL of an upstream quote feed (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger := mustLogger(cfg.Logging.Level)
	defer logger.Sync()

	engine, err := orderflow.New(cfg, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Fatal("failed to build order flow engine", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go engine.Run(ctx)

	if *feedURL != "" {
		feed := ingest.NewWebSocketFeed(*feedURL, engine, logger)
		go feed.Run(ctx)
	}

	router := httpapi.NewRouter(engine, logger, cfg.Server.RateLimitPerMinute)
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("order flow server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func mustLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	return logger
}
