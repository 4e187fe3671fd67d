// Command gastos-server is the development backend: the REST API the gastos
// dashboard talks to, stored in SQLite.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"gastos/internal/cli"
	apphttp "gastos/internal/http"
	applog "gastos/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLiteStorage(logger, cfg)
	defer repo.Close()

	opts := apphttp.Options{
		Addr:           ":" + cfg.Port,
		Repository:     repo,
		Logger:         logger,
		RateLimitRPM:   cfg.RateLimitRPM,
		AllowedOrigins: cfg.AllowedOrigins,
	}
	// Publishing only; the exclusive queue name is irrelevant here.
	events := cli.InitAMQP(logger, cfg, "")
	if events != nil {
		defer events.Close()
		opts.Publisher = events
	}

	srv := apphttp.NewServer(opts)
	ctx := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
	})

	logger.Info("Starting gastos server", "port", cfg.Port, "events", events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
