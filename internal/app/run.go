package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-oauth/internal/common/logging"
	"marketplace-oauth/internal/config"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 30 * time.Second

// Run is the main entry point for the application
func Run() error {
	// Load environment variables
	_ = godotenv.Load()

	closeLog, err := logging.InitGlobalLogger(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE"))
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	defer logging.MustSync()

	logging.Info("Starting marketplace OAuth service", logging.String("version", "1.0.0"))

	// Load and validate configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}
	defer app.Cleanup()

	srv := app.RunServer()
	if err := srv.Start(); err != nil {
		logging.Error("Server failed to start", err)
		return err
	}
	logging.Info("Server listening",
		logging.String("addr", srv.Addr()),
		logging.Field{Key: "tls", Value: cfg.TLSEnabled()},
	)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info("Shutting down server...")
	case serveErr = <-srv.Errors():
		logging.Error("Server stopped unexpectedly", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Server forced to shutdown", err)
		return err
	}

	logging.Info("Server exited")
	return serveErr
}
