package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olajoao/signal-desk/internal/config"
	"github.com/olajoao/signal-desk/internal/live"
	"github.com/olajoao/signal-desk/internal/status"

	"github.com/olajoao/signal-desk/pkg/metrics"
	"github.com/olajoao/signal-desk/pkg/shared"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse command-line flags with environment variable fallbacks
	cfg := &config.GatewayConfig{}
	flag.StringVar(&cfg.ListenAddr, "listen-addr", shared.GetEnvOrDefault("LISTEN_ADDR", ":8090"), "HTTP listen address for WebSocket clients")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", shared.GetEnvOrDefault("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.Parse()

	shared.SetupLogging()

	slog.Info("Starting live gateway",
		"listen_addr", cfg.ListenAddr,
		"redis_addr", cfg.RedisAddr,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	slog.Info("Connecting to Redis", "addr", cfg.RedisAddr)
	redisClient, err := shared.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		slog.Info("Tip: Start Redis with 'docker compose up -d redis'")
		os.Exit(1)
	}
	defer redisClient.Close()

	metricsCollector := metrics.NewCollector("live-gateway", redisClient)
	metricsCollector.Start(ctx)
	defer metricsCollector.Stop()

	hub := live.NewHub()
	defer hub.Close()

	subscriber := live.NewSubscriber(redisClient, hub)
	subErr := make(chan error, 1)
	go func() {
		subErr <- subscriber.Run(ctx, nil)
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", live.NewHandler(hub, nil))
	status.NewHandlers(redisClient).Register(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Live gateway listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-subErr:
		if err != nil {
			slog.Error("Redis subscription failed", "error", err)
			exitCode = 1
		}
	case err, ok := <-serverErr:
		if ok && err != nil {
			slog.Error("HTTP server failed", "error", err)
			exitCode = 1
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shut down HTTP server", "error", err)
	}

	slog.Info("Live gateway stopped", "clients", hub.ClientCount())
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
