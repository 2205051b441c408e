package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/spf13/cobra"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var planPath string
	var reset bool
	var autoApprove bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate notes for every topic of the workspace queue",
		Long: "Seeds the workspace queue from the plan when the queue is empty or --reset is given, " +
			"then runs both generation phases until nothing is eligible. Interrupting stops the run " +
			"after the current call; the queue is saved and a later run resumes it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := loadPlan(planPath)
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runCfg := plan.RunConfig(cfg)
			if cmd.Flags().Changed("auto-approve") {
				runCfg.AutoApprove = autoApprove
			}

			return ctx.withSession(cmd, true, func(s *session) error {
				if err := seedQueue(cmd.Context(), s, plan, reset); err != nil {
					return err
				}

				runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				if err := s.queue.StartProcessing(runCfg); err != nil {
					return err
				}
				if err := s.queue.Wait(runCtx); err != nil {
					s.logger.Info("interrupted, stopping after the current call")
					s.queue.Stop()
					if err := s.queue.Wait(context.Background()); err != nil {
						return err
					}
				}

				final := s.queue.Snapshot()
				if err := ctx.printSnapshot(cmd, final); err != nil {
					return err
				}
				if final.Circuit.Tripped {
					return fmt.Errorf("%w: %s", curriculum.ErrCircuitTripped, final.Circuit.LastReason)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&planPath, "plan", "p", "plan.toml", "Curriculum plan file (TOML)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Replace the existing queue and notes with the plan's topics")
	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "Skip the review pause between the two phases")

	return cmd
}

// seedQueue replaces the queue with the plan's topics when the queue is
// empty or reset is set. Otherwise the stored queue is resumed.
func seedQueue(ctx context.Context, s *session, plan *Plan, reset bool) error {
	existing := len(s.queue.Snapshot().Items)
	if existing > 0 && !reset {
		s.logger.Info("resuming stored queue", "item_count", existing)
		return nil
	}

	items, err := plan.QueueItems()
	if err != nil {
		if errors.Is(err, errEmptyPlan) && existing == 0 {
			return fmt.Errorf("%w: add topics to the plan", err)
		}
		return err
	}

	if existing > 0 {
		if err := s.manager.Clear(ctx, s.key); err != nil {
			return err
		}
	}
	return s.queue.SetQueue(items)
}
