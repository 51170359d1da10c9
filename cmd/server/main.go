package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/crmkit/importer/internal/config"
	"github.com/crmkit/importer/internal/core"
	"github.com/crmkit/importer/internal/logging"
	"github.com/crmkit/importer/internal/schema"
	"github.com/crmkit/importer/internal/store"
	"github.com/crmkit/importer/internal/store/memory"
	"github.com/crmkit/importer/internal/store/postgres"
	"github.com/crmkit/importer/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"max_file_size", cfg.Import.MaxFileSize,
		"max_rows", cfg.Import.MaxRows,
		"owner_capacity", cfg.Import.OwnerCapacity,
	)

	ctx := context.Background()

	// Select record store: PostgreSQL when a URL is configured, otherwise
	// the in-memory store for local runs.
	var recordStore store.RecordStore
	if cfg.Database.URL != "" {
		pool, err := connectPool(ctx, cfg)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		pg := postgres.New(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure database schema", "error", err)
			os.Exit(1)
		}
		recordStore = pg
	} else {
		slog.Info("no database URL configured, using in-memory store")
		recordStore = memory.New()
	}

	service := core.NewService(
		recordStore,
		store.FixedCapacity(cfg.Import.OwnerCapacity),
		store.SystemClock{},
		core.Limits{
			MaxFileBytes: cfg.Import.MaxFileSize,
			MaxRows:      cfg.Import.MaxRows,
			LockWait:     cfg.Import.LockWait,
		},
	)

	slog.Info("schemas registered", "kinds", strings.Join(schema.Kinds(), ", "))

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(cfg.Server.Addr()); err != nil {
		slog.Info("server stopped", "error", err)
	}
}

// connectPool builds the pgx pool from config and verifies the connection.
func connectPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	return pool, nil
}
