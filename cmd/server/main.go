package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"chatagent-backend/internal/chatui"
	"chatagent-backend/internal/config"
	"chatagent-backend/internal/handlers"
	"chatagent-backend/internal/logging"
	"chatagent-backend/internal/monitoring"
	"chatagent-backend/internal/router"
	"chatagent-backend/internal/services"
	"chatagent-backend/internal/web"
	"chatagent-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Configuration error: %v\n", err)
		os.Exit(1)
	}

	// ──── Step 2: Logger ────
	logCfg := logging.DefaultConfig()
	if cfg.IsDevelopment() {
		logCfg = logging.DevelopmentConfig()
	}
	logCfg.Level = cfg.LogLevel
	logCfg.Service = "chatagent-backend"
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Logger initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting chat agent backend",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)
	if cfg.BackendURL == "" {
		logger.Warn("BACKEND_URL is not set; every chat request will fail until it is configured")
	}

	// ──── Step 3: Services ────
	metrics := monitoring.NewMetrics()
	catalog := services.NewCatalogClient(cfg.UpstreamTimeout)
	search := services.NewSearchService(catalog, metrics, logger)

	// ──── Step 4: Handlers ────
	chatHandler := handlers.NewChatHandler(search, cfg.BackendURL, cfg.MaxBodyBytes, metrics, logger)
	webHandler := web.NewHandler(web.DefaultPage(), logger)

	// ──── Step 5: WebSocket Hub ────
	wsHub := websocket.NewHub(chatui.NewProxyClient(cfg.ChatAPIURL), cfg.FrontendURL, metrics, logger)

	// ──── Step 6: HTTP Server ────
	r := router.New(chatHandler, webHandler, wsHub, metrics, logger, cfg.FrontendURL)

	// No WriteTimeout: a chat request waits on the Product Service for as
	// long as UPSTREAM_TIMEOUT allows.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down...")
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Warn("Graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Chat agent backend ready",
		zap.String("ui", fmt.Sprintf("http://localhost:%s", cfg.Port)),
		zap.String("api", cfg.ChatAPIURL),
	)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server error", zap.Error(err))
	}
}
