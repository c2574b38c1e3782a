// Package main is the entry point for the modplane server binary. It
// dispatches four subcommands via a simple switch on os.Args so the binary's
// full CLI surface is readable in one place without a cobra dependency:
//
//	serve    run the API server (default); migrates the database on startup
//	migrate  run database migrations up or down
//	verify   verify the audit ledger chain and exit non-zero when broken
//	version  print the build version
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modplane/modplane/internal/api"
	"github.com/modplane/modplane/internal/audit"
	"github.com/modplane/modplane/internal/auth"
	"github.com/modplane/modplane/internal/config"
	"github.com/modplane/modplane/internal/db"
	"github.com/modplane/modplane/internal/ledger"
	"github.com/modplane/modplane/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch command {
	case "serve":
		return serve(cfg, configPath)
	case "migrate":
		if len(os.Args) < 3 {
			return fmt.Errorf("usage: %s migrate <up|down>", os.Args[0])
		}
		return runMigrations(cfg, os.Args[2])
	case "verify":
		path := cfg.Ledger.Path
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		return verifyLedger(path)
	case "version":
		fmt.Printf("modplane %s\n", api.Version)
		return nil
	default:
		return fmt.Errorf("unknown command: %s\nAvailable commands: serve, migrate, verify, version", command)
	}
}

func serve(cfg *config.Config, configPath string) error {
	// Install the structured logger before anything else logs.
	telemetry.SetupLogger(cfg.Logging.Format, cfg.Logging.Level)

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Fails in production when MODP_JWT_SECRET is not set.
	if err := auth.ValidateJWTSecret(); err != nil {
		return fmt.Errorf("security configuration error: %w", err)
	}

	// The logging level is the only setting applied on config file change;
	// everything else requires a restart.
	if configPath != "" {
		watcher, err := config.Watch(configPath, func(fresh *config.Config) {
			telemetry.SetLogLevel(fresh.Logging.Level)
			slog.Info("configuration reloaded", "log_level", fresh.Logging.Level)
		})
		if err != nil {
			slog.Warn("config watching disabled", "error", err.Error())
		} else {
			defer watcher.Close()
		}
	}

	database, err := db.Connect(cfg.Database.DSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()
	slog.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.Name)

	telemetry.StartDBStatsCollector(database.DB)

	if err := db.RunMigrations(database, "up"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if version, dirty, err := db.MigrationVersion(database); err != nil {
		slog.Warn("failed to read migration version", "error", err.Error())
	} else {
		slog.Info("database schema ready", "version", version, "dirty", dirty)
	}

	// Opening the ledger replays and verifies the whole chain; a tampered
	// file refuses to open rather than silently extending a broken chain.
	ledgerHandle, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return fmt.Errorf("failed to open audit ledger: %w", err)
	}
	defer ledgerHandle.Close()
	seq, _ := ledgerHandle.LastState()
	telemetry.LedgerRecordsTotal.Set(float64(seq))
	slog.Info("audit ledger open", "path", cfg.Ledger.Path, "last_sequence", seq)

	shipper, err := audit.NewMultiShipper(cfg.Audit.Shippers)
	if err != nil {
		return fmt.Errorf("failed to configure audit shippers: %w", err)
	}
	defer shipper.Close()

	// Prometheus metrics on a dedicated port, off the public ingress path.
	if cfg.Telemetry.Enabled && cfg.Telemetry.Metrics.Enabled {
		metricsAddr := fmt.Sprintf(":%d", cfg.Telemetry.Metrics.PrometheusPort)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			slog.Info("starting Prometheus metrics server", "addr", metricsAddr)
			srv := &http.Server{
				Addr:         metricsAddr,
				Handler:      mux,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "error", err.Error())
			}
		}()
	}

	router, bgServices := api.NewRouter(cfg, database, ledgerHandle, shipper)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	bgServices.Shutdown()

	slog.Info("server stopped")
	return nil
}

// verifyLedger replays the ledger file and prints the verification result as
// JSON. Exits through an error (non-zero status) when the chain is broken, so
// the command works in cron jobs and readiness probes.
func verifyLedger(path string) error {
	handle, err := ledger.Open(path)
	if err != nil {
		return fmt.Errorf("ledger failed integrity check: %w", err)
	}
	defer handle.Close()

	records, err := handle.ReadAll()
	if err != nil {
		return fmt.Errorf("read ledger: %w", err)
	}

	result := ledger.Verify(records)
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !result.Valid {
		return fmt.Errorf("chain broken at sequence %d: %s", result.FailedSequence, result.Reason)
	}
	return nil
}

func runMigrations(cfg *config.Config, direction string) error {
	database, err := db.Connect(cfg.Database.DSN(), cfg.Database.MaxConnections, cfg.Database.MinIdleConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, direction); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := db.MigrationVersion(database)
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	log.Printf("Migration completed. Current version: %d (dirty: %v)", version, dirty)
	return nil
}
