package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-curriculum/internal/api"
	"github.com/phrazzld/scry-curriculum/internal/config"
	"github.com/phrazzld/scry-curriculum/internal/platform/gemini"
	"github.com/phrazzld/scry-curriculum/internal/platform/postgres"
	"github.com/phrazzld/scry-curriculum/internal/service"
	"github.com/phrazzld/scry-curriculum/internal/service/auth"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	jwtService auth.JWTService
	manager    service.WorkspaceManager
	stream     *api.StreamHandler
}

// newApplication builds the LLM generators and Postgres stores and assembles
// the application around them.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	generator, err := gemini.NewRouter(ctx, logger.With("component", "llm_generator"), cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM generator: %w", err)
	}
	logger.Info("LLM generator initialized",
		"default_provider", cfg.LLM.DefaultProvider,
		"structure_model", cfg.LLM.StructureModel,
		"content_model", cfg.LLM.ContentModel)

	return assembleApplication(cfg, logger, db, service.ManagerDependencies{
		Generator: generator,
		Snapshots: postgres.NewPostgresSnapshotStore(db, logger),
		Notes:     postgres.NewPostgresNoteStore(db, logger),
		Logger:    logger,
	})
}

// assembleApplication wires the services that sit on top of the generator
// and stores in deps.
func assembleApplication(
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	deps service.ManagerDependencies,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		"token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes)

	settings := service.SettingsFromConfig(cfg.Curriculum)
	app.manager, err = service.NewWorkspaceManager(deps, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace manager: %w", err)
	}
	logger.Info("workspace manager initialized",
		"max_attempts", settings.Retry.MaxAttempts,
		"breaker_threshold", settings.BreakerThreshold)

	app.stream = api.NewStreamHandler(app.manager, nil, logger)

	logger.Info("application initialized successfully")
	return app, nil
}

// Run starts the application server, handling lifecycle and cleanup.
// It returns an error if the server fails to start or encounters problems.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops every curriculum run and closes the database.
func (app *application) cleanup(ctx context.Context) {
	if app.manager != nil {
		if err := app.manager.Shutdown(ctx); err != nil {
			app.logger.Error("error shutting down workspace manager", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
