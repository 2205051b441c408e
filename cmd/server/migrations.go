package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/phrazzld/scry-curriculum/internal/platform/migrations"
)

// errUnknownMigrationCommand is returned for -migrate values other than
// up, down, status and version.
var errUnknownMigrationCommand = errors.New("unknown migration command")

// handleMigrations executes one migration command against db and writes its
// report to out.
func handleMigrations(
	ctx context.Context,
	db *sql.DB,
	dialect migrations.Dialect,
	command string,
	out io.Writer,
	logger *slog.Logger,
) error {
	m, err := migrations.New(db, dialect, logger)
	if err != nil {
		return err
	}

	logger.Info("executing migration command", "command", command)

	switch command {
	case "up":
		if err := m.Up(ctx); err != nil {
			return err
		}
	case "down":
		if err := m.Down(ctx); err != nil {
			return err
		}
	case "status":
		statuses, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			state := "pending"
			if s.Applied {
				state = "applied " + s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
			}
			if _, err := fmt.Fprintf(out, "%05d  %-45s %s\n", s.Version, s.Path, state); err != nil {
				return err
			}
		}
		return nil
	case "version":
		// handled below
	default:
		return fmt.Errorf("%w: %q", errUnknownMigrationCommand, command)
	}

	version, err := m.Version(ctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "schema version: %d\n", version)
	return err
}
