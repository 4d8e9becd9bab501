package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/crucial707/labstock/internal/auth"
	"github.com/crucial707/labstock/internal/config"
	"github.com/crucial707/labstock/internal/db"
	"github.com/crucial707/labstock/internal/inventory"
	"github.com/crucial707/labstock/internal/repo"
	"github.com/crucial707/labstock/internal/scheduler"
	"github.com/crucial707/labstock/pkg/logger"
)

func main() {
	if err := config.LoadDotEnv(os.Getenv("LABSTOCK_ENV_FILE")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := config.Load()

	baseLogger, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	if err := cfg.Validate(); err != nil {
		baseLogger.Fatal("invalid configuration", zap.Error(err))
	}

	ledger, audit, closeStorage, err := openStorage(cfg, baseLogger.Named("storage"))
	if err != nil {
		baseLogger.Fatal("failed to open storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer func() {
		if err := closeStorage(); err != nil {
			baseLogger.Error("failed to close storage", zap.Error(err))
		}
	}()

	provider, err := auth.NewStaticProvider(cfg.Credentials()...)
	if err != nil {
		baseLogger.Fatal("failed to load credentials", zap.Error(err))
	}
	tokens := auth.NewTokens([]byte(cfg.SessionSecret), cfg.SessionTTL())
	svc := inventory.NewService(ledger, audit, baseLogger.Named("svc.inventory"))

	handler, err := newRouter(cfg, svc, provider, tokens, baseLogger)
	if err != nil {
		baseLogger.Fatal("failed to build router", zap.Error(err))
	}

	if cfg.ExportCron != "" {
		exporter := scheduler.NewExporter(svc, cfg.ExportDir, cfg.ExportLocation(), baseLogger.Named("scheduler"))
		if err := exporter.Start(cfg.ExportCron); err != nil {
			baseLogger.Fatal("failed to start export scheduler", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			exporter.Stop(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting",
			zap.String("port", cfg.Port),
			zap.String("storage", cfg.StorageDriver),
			zap.Bool("tls", cfg.TLSEnabled()))
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// openStorage returns the ledger and audit log for the configured driver and
// a function releasing them.
func openStorage(cfg config.Config, log *zap.Logger) (inventory.Ledger, inventory.AuditLog, func() error, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		opts := cfg.DBOptions()
		version, err := db.Migrate(opts)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		conn, err := db.Connect(opts)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("connected to postgres", zap.String("host", opts.Host), zap.String("db", opts.Name), zap.Uint("schema_version", version))
		store := repo.NewPGStore(conn)
		return store, store, conn.Close, nil
	default:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("create data dir: %w", err)
		}
		ledger, err := repo.NewReagentFileRepo(filepath.Join(cfg.DataDir, "reagents.csv"))
		if err != nil {
			return nil, nil, nil, err
		}
		audit, err := repo.NewAuditFileRepo(filepath.Join(cfg.DataDir, "log.csv"))
		if err != nil {
			return nil, nil, nil, err
		}
		log.Info("using csv files", zap.String("ledger", ledger.Path()), zap.String("audit", audit.Path()))
		return ledger, audit, func() error { return nil }, nil
	}
}
