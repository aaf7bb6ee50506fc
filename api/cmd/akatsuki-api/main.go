package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"akatsuki/api/internal/api/handlers"
	"akatsuki/api/internal/api/middleware"
	"akatsuki/api/internal/api/router"
	"akatsuki/api/internal/config"
	"akatsuki/api/internal/db/mysql"
	"akatsuki/api/internal/infrastructure/crypto"
	"akatsuki/api/internal/logging"
	"akatsuki/api/internal/mail"
	"akatsuki/api/internal/metrics"
	"akatsuki/api/internal/workers"
)

func main() {
	if err := run(); err != nil {
		slog.Error("FATAL: startup failed", "error", err)
		os.Exit(1)
	}
}

// run owns every resource it opens, so its defers fire on each exit path.
func run() error {
	// --- 1. Core Telemetry & Configuration ---
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using process environment")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logFile, err := logging.New(logging.Options{
		Dir:    cfg.LogDir,
		Prefix: "api",
		Level:  logging.ParseLevel(cfg.LogLevel),
	})
	if err != nil {
		return fmt.Errorf("logger setup failed: %w", err)
	}
	defer logFile.Close()
	slog.SetDefault(logger)
	logger.Info("🚀 Booting Akatsuki API...", "env", cfg.Environment)

	// --- 2. Secrets ---
	// The key is re-read from the environment on every call.
	cipher := crypto.NewAESCryptoService(config.EncryptKey, logger)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelBoot()

	if err := cfg.UnsealSecrets(bootCtx, cipher); err != nil {
		return fmt.Errorf("could not unseal secrets: %w", err)
	}

	// --- 3. Outbound Infrastructure ---
	dbPool, err := mysql.NewPool(bootCtx, cfg.MySQL)
	if err != nil {
		return fmt.Errorf("DB failed: %w", err)
	}
	defer dbPool.Close()

	telemetry := metrics.New(dbPool.DB)
	gateway := telemetry.InstrumentGateway(mysql.NewGateway(dbPool, logger))
	mailer := telemetry.InstrumentMailer(mail.NewSMTPMailer(cfg.Mail, logger))
	if !cfg.Mail.Configured(cfg.Mail.SendTo) {
		logger.Warn("mail transport not fully configured, /v1/mail will answer 503")
	}

	serverCtx, cancelServer := context.WithCancel(context.Background())
	defer cancelServer()

	// --- 4. Background Workers ---
	poolMonitor := workers.NewPoolMonitor(dbPool, logger, time.Minute)
	go poolMonitor.Start(serverCtx)

	// --- 5. HTTP Gateway ---
	mux := router.NewRouter(router.RouterConfig{
		AllowedOrigins:   cfg.AllowedOrigins,
		HealthHandler:    handlers.NewHealthHandler(gateway),
		DevHandler:       handlers.NewDevHandler(),
		MailHandler:      handlers.NewMailHandler(mailer, logger),
		APIKeyMiddleware: middleware.NewAPIKeyMiddleware(cfg.APIKey, logger),
		RateLimiter:      middleware.NewRateLimiter(serverCtx, cfg.RateLimitRPS, cfg.RateLimitBurst),
		Metrics:          telemetry,
		Logger:           logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      75 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return serverCtx },
	}

	// --- 6. Graceful Exit ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("🌐 Akatsuki API active", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var crashErr error
	select {
	case <-stop:
	case crashErr = <-serveErr:
		logging.Critical(context.Background(), logger, "server crashed", "error", crashErr)
	}

	logger.Info("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("ERROR: Forced shutdown", "error", err)
	}
	cancelServer()
	logger.Info("✅ Akatsuki API shutdown complete")
	return crashErr
}
