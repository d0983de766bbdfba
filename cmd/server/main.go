package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/USFAkbari/Excel-Tools/internal/config"
	"github.com/USFAkbari/Excel-Tools/internal/core"
	"github.com/USFAkbari/Excel-Tools/internal/logging"
	"github.com/USFAkbari/Excel-Tools/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	flushLogs := logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.SeqURL)
	defer flushLogs()

	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()

	var audit core.AuditSink
	if cfg.Database.Enabled() {
		pool, err := connect(ctx, &cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		sink, err := core.NewPostgresAuditSink(ctx, pool)
		if err != nil {
			slog.Error("failed to prepare audit log table", "error", err)
			os.Exit(1)
		}
		audit = sink
	} else {
		slog.Info("no database configured, audit log kept in memory")
	}

	service := core.NewService(core.Options{
		MaxConcurrent:      cfg.Ops.MaxConcurrent,
		MaxWait:            cfg.Ops.MaxWaitTime,
		MaxFileSize:        cfg.Upload.MaxFileSize,
		AllowedExtensions:  cfg.Upload.AllowedExtensions,
		PreviewDefaultRows: cfg.Preview.DefaultRows,
		PreviewMaxRows:     cfg.Preview.MaxRows,
		Audit:              audit,
	})

	server := web.NewServer(service, cfg)

	// Background jobs stop with jobCtx
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	go service.StartRetentionScheduler(jobCtx, core.RetentionConfig{
		FileRetention:  cfg.Retention.FileRetention,
		AuditRetention: cfg.Retention.AuditRetention,
		CheckInterval:  cfg.Retention.CheckInterval,
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests, then let running operations finish
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if active := service.Limiter().ActiveCount(); active > 0 {
			slog.Info("waiting for operations to complete", "active", active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("operations did not complete in time", "error", err)
			} else {
				slog.Info("all operations completed")
			}
		}
	}()

	if err := server.Start(jobCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		cancelJobs()
		flushLogs()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

// connect opens a pgx pool sized from cfg and verifies it with a ping.
func connect(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
