// Package main implements the curriculum API server, which runs batch
// curriculum generation queues for authenticated users and exposes them
// over HTTP and WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/phrazzld/scry-curriculum/internal/config"
	"github.com/phrazzld/scry-curriculum/internal/platform/logger"
	"github.com/phrazzld/scry-curriculum/internal/platform/migrations"
	"github.com/phrazzld/scry-curriculum/internal/platform/postgres"
)

func main() {
	migrateCmd := flag.String("migrate", "",
		"run a migration command (up, down, status, version) and exit")
	flag.Parse()

	if err := run(context.Background(), *migrateCmd); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// run loads configuration, connects to the database and either executes a
// migration command or serves the API until a shutdown signal arrives.
func run(ctx context.Context, migrateCmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	l.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"llm_provider", cfg.LLM.DefaultProvider)

	db, err := postgres.Open(ctx, cfg.Database, l)
	if err != nil {
		return err
	}

	if migrateCmd != "" {
		defer func() {
			if err := db.Close(); err != nil {
				l.Error("error closing database connection", "error", err)
			}
		}()
		return handleMigrations(ctx, db, migrations.DialectPostgres, migrateCmd, os.Stdout, l)
	}

	if err := migrations.Run(ctx, db, migrations.DialectPostgres, l); err != nil {
		_ = db.Close()
		return err
	}

	app, err := newApplication(ctx, cfg, l, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	slog.SetDefault(l)
	return app.Run(ctx)
}
