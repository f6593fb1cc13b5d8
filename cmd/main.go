// Package main is the entry point for the URL scanner service.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/syauqi01234-prog/url-scanner/internal/api"
	"github.com/syauqi01234-prog/url-scanner/internal/config"
	"github.com/syauqi01234-prog/url-scanner/internal/provider"
	"github.com/syauqi01234-prog/url-scanner/internal/publisher"
	"github.com/syauqi01234-prog/url-scanner/internal/scan"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Starting URL scanner service")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("Failed to load configuration: %v", err)
	}

	sugar.Infow("Configuration loaded",
		"port", cfg.Server.Port,
		"provider_base_url", cfg.Provider.BaseURL,
		"max_attempts", cfg.Poller.MaxAttempts,
	)

	// Initialize RabbitMQ publisher (optional)
	var pub *publisher.Publisher
	if cfg.RabbitMQ.Enabled {
		pub, err = publisher.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, sugar)
		if err != nil {
			sugar.Fatalf("Failed to initialize publisher: %v", err)
		}
		defer pub.Close()
	}

	// Initialize provider client and scan manager
	client := provider.New(cfg.Provider, sugar)
	opts := scan.Options{
		MaxAttempts:     cfg.Poller.MaxAttempts,
		InitialInterval: time.Duration(cfg.Poller.InitialIntervalMS) * time.Millisecond,
		BackoffFactor:   cfg.Poller.BackoffFactor,
		MaxInterval:     time.Duration(cfg.Poller.MaxIntervalMS) * time.Millisecond,
	}
	manager := scan.NewManager(client, client, opts, pub, sugar)

	// Initialize API server
	server := api.New(cfg.Server, manager, sugar)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		sugar.Infof("HTTP server listening on port %d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop running scans
	manager.Stop()

	// Shutdown HTTP server
	if err := httpServer.Shutdown(ctx); err != nil {
		sugar.Errorf("Server forced to shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}
