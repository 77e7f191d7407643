package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/kenneth/crypto-range-gateway/internal/api"
	"github.com/kenneth/crypto-range-gateway/internal/audit"
	"github.com/kenneth/crypto-range-gateway/internal/config"
	"github.com/kenneth/crypto-range-gateway/internal/meta"
	"github.com/kenneth/crypto-range-gateway/internal/metrics"
	"github.com/kenneth/crypto-range-gateway/internal/middleware"
	"github.com/kenneth/crypto-range-gateway/internal/storage"
	"github.com/kenneth/crypto-range-gateway/internal/tracing"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	// Set log level from config
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithError(err).Warn("Invalid log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.WithFields(logrus.Fields{
		"version": version,
		"commit":  commit,
	}).Info("Starting crypto range gateway")

	// Initialize tracing
	shutdownTracing, err := tracing.Setup(context.Background(), &cfg.Tracing)
	if err != nil {
		logger.WithError(err).Fatal("Failed to set up tracing")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.WithError(err).Warn("Failed to flush traces")
		}
	}()

	// Initialize metrics
	m := metrics.NewMetrics()
	m.StartSystemMetricsCollector()

	// Resolve the key-derivation secret
	secret := cfg.Encryption.Password
	if secret == "" && cfg.Encryption.KeyFile != "" {
		keyData, err := os.ReadFile(cfg.Encryption.KeyFile)
		if err != nil {
			logger.WithError(err).Fatal("Failed to read encryption key file")
		}
		secret = strings.TrimSpace(string(keyData))
	}
	if secret == "" {
		logger.Fatal("Encryption secret is required (set ENCRYPTION_PASSWORD or encryption.password)")
	}

	// Initialize the storage backend
	var backend storage.Backend
	switch cfg.Storage.Backend {
	case "file":
		backend, err = storage.NewFileBackend(cfg.Storage.File.Root, logger)
	case "s3":
		backend, err = storage.NewS3Backend(&cfg.Storage.S3, logger)
	}
	if err != nil {
		logger.WithError(err).Fatal("Failed to create storage backend")
	}
	defer backend.Close()
	logger.WithField("backend", backend.Name()).Info("Storage backend initialized")

	// Open the metadata store
	metaStore, err := meta.NewStore(cfg.Metadata.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open metadata store")
	}
	defer metaStore.Close()

	// Initialize audit logger if enabled
	var auditLogger audit.Logger
	if cfg.Audit.Enabled {
		auditLogger = audit.NewLogger(cfg.Audit.MaxEvents, nil)
		logger.WithField("max_events", cfg.Audit.MaxEvents).Info("Audit logging enabled")
	}

	// Initialize API handler
	handler := api.NewHandler(backend, metaStore, cfg, secret, logger, m, auditLogger)

	// Setup router
	router := mux.NewRouter()
	router.Handle("/metrics", m.Handler()).Methods("GET")
	handler.RegisterRoutes(router)

	// Apply middleware
	httpHandler := middleware.RecoveryMiddleware(logger)(router)
	httpHandler = middleware.LoggingMiddleware(logger, m)(httpHandler)
	if cfg.Tracing.Enabled {
		httpHandler = middleware.TracingMiddleware()(httpHandler)
	}
	httpHandler = middleware.SecurityHeadersMiddleware()(httpHandler)

	// Hot-reload safe configuration on SIGHUP and config file changes
	reloader, err := config.NewConfigReloader(configPath, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create config reloader")
	}
	reloader.SetOnReloadCallback(func(old, new *config.Config) error {
		if lvl, err := logrus.ParseLevel(new.LogLevel); err == nil {
			logger.SetLevel(lvl)
		}
		return nil
	})
	go reloader.Start()
	defer reloader.Stop()

	// Create HTTP server
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpHandler,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		MaxHeaderBytes:    cfg.Server.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		var err error
		if cfg.TLS.Enabled {
			logger.WithFields(logrus.Fields{
				"addr":      cfg.ListenAddr,
				"cert_file": cfg.TLS.CertFile,
			}).Info("Starting HTTPS server")
			err = server.ListenAndServeTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			logger.WithField("addr", cfg.ListenAddr).Info("Starting HTTP server")
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	} else {
		logger.Info("Server stopped gracefully")
	}
}
