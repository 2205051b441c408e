package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/config"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/generation"
	"github.com/phrazzld/scry-curriculum/internal/platform/gemini"
	"github.com/phrazzld/scry-curriculum/internal/platform/logger"
	"github.com/phrazzld/scry-curriculum/internal/platform/sqlite"
	"github.com/phrazzld/scry-curriculum/internal/service"
	"github.com/spf13/cobra"
)

const (
	defaultStatePath = "curriculum.db"
	defaultWorkspace = "default"
)

// localOwnerID owns every workspace of a local state file.
var localOwnerID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("scry-curriculum:local"))

// errStateLocked is returned when another process holds the state file.
var errStateLocked = errors.New("state file is in use by another curriculum process")

// generatorFactory builds the generator used by run.
type generatorFactory func(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (generation.Generator, error)

func geminiGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (generation.Generator, error) {
	return gemini.NewRouter(ctx, logger, cfg)
}

type commandContext struct {
	statePath  string
	workspace  string
	jsonOutput bool
	verbose    bool

	loadConfig   func() (*config.Config, error)
	newGenerator generatorFactory

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext() *commandContext {
	return &commandContext{
		statePath:    defaultStatePath,
		workspace:    defaultWorkspace,
		loadConfig:   config.LoadGeneration,
		newGenerator: geminiGenerator,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = c.loadConfig()
	})
	return c.config, c.configErr
}

// workspaceKey maps the workspace flag to a key. A UUID is used as is; any
// other name is hashed into a stable UUID.
func (c *commandContext) workspaceKey() (domain.WorkspaceKey, error) {
	name := strings.TrimSpace(c.workspace)
	if name == "" {
		return domain.WorkspaceKey{}, domain.ErrEmptyWorkspaceID
	}
	id, err := uuid.Parse(name)
	if err != nil {
		id = uuid.NewSHA1(localOwnerID, []byte(name))
	}
	return domain.WorkspaceKey{OwnerID: localOwnerID, WorkspaceID: id}, nil
}

func (c *commandContext) newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level, ok := logger.ParseLevel(cfg.Server.LogLevel)
	if !ok {
		level = slog.LevelInfo
	}
	if c.verbose {
		level = slog.LevelDebug
	}
	return logger.New(cmd.ErrOrStderr(), level, true)
}

// session is an open workspace of the state file. The state file stays
// locked until the session is closed.
type session struct {
	key     domain.WorkspaceKey
	queue   *curriculum.QueueService
	manager service.WorkspaceManager
	logger  *slog.Logger
}

// withSession locks and opens the state file, runs fn on the selected
// workspace and closes everything again. Only sessions that generate need a
// working LLM configuration.
func (c *commandContext) withSession(cmd *cobra.Command, generate bool, fn func(*session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	key, err := c.workspaceKey()
	if err != nil {
		return err
	}
	log := c.newLogger(cmd, cfg)
	ctx := cmd.Context()

	if err := os.MkdirAll(filepath.Dir(c.statePath), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	lock := flock.New(c.statePath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire state lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", errStateLocked, c.statePath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("failed to release state lock", "error", err)
		}
	}()

	var generator generation.Generator = unavailableGenerator{}
	if generate {
		generator, err = c.newGenerator(ctx, log.With("component", "llm_generator"), cfg.LLM)
		if err != nil {
			return fmt.Errorf("initialize LLM generator: %w", err)
		}
	}

	db, err := sqlite.Open(ctx, c.statePath, log)
	if err != nil {
		return err
	}
	defer closeDB(db, log)

	manager, err := service.NewWorkspaceManager(service.ManagerDependencies{
		Generator: generator,
		Snapshots: sqlite.NewSnapshotStore(db, log),
		Notes:     sqlite.NewNoteStore(db, log),
		Logger:    log,
	}, service.SettingsFromConfig(cfg.Curriculum))
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Shutdown(context.Background()); err != nil {
			log.Warn("failed to shut down workspace manager", "error", err)
		}
	}()

	queue, err := manager.Get(ctx, key)
	if err != nil {
		return err
	}

	return fn(&session{
		key:     key,
		queue:   queue,
		manager: manager,
		logger:  log,
	})
}

func closeDB(db *sql.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Warn("failed to close state file", "error", err)
	}
}

// unavailableGenerator backs sessions that only inspect or edit the queue.
type unavailableGenerator struct{}

func (unavailableGenerator) GenerateStructure(context.Context, string, generation.PhaseConfig) (string, error) {
	return "", fmt.Errorf("%w: generation is only available during run", generation.ErrInvalidConfig)
}

func (unavailableGenerator) GenerateContent(context.Context, string, string, generation.PhaseConfig) (string, error) {
	return "", fmt.Errorf("%w: generation is only available during run", generation.ErrInvalidConfig)
}
