package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// itemCommand builds a command that applies op to the item named by --item
// and prints the resulting queue.
func itemCommand(ctx *commandContext, use, short string, op func(*session, uuid.UUID) error) *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, false, func(s *session) error {
				id, err := resolveItem(s.queue.Snapshot(), ref)
				if err != nil {
					return err
				}
				if err := op(s, id); err != nil {
					return err
				}
				return ctx.printSnapshot(cmd, s.queue.Snapshot())
			})
		},
	}
	cmd.Flags().StringVarP(&ref, "item", "i", "", "Item UUID, ID prefix or queue position")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var structureFile string
	cmd := itemCommand(ctx, "approve", "Approve a drafted outline, optionally replacing it",
		func(s *session, id uuid.UUID) error {
			structure := ""
			if structureFile != "" {
				data, err := os.ReadFile(structureFile)
				if err != nil {
					return fmt.Errorf("read structure file: %w", err)
				}
				structure = string(data)
			}
			return s.queue.UpdateItemStructure(id, structure)
		})
	cmd.Flags().StringVarP(&structureFile, "structure-file", "f", "", "File whose contents replace the drafted outline")
	return cmd
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	return itemCommand(ctx, "reject", "Discard a drafted outline so it is drafted again",
		func(s *session, id uuid.UUID) error {
			return s.queue.RejectStructure(id)
		})
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return itemCommand(ctx, "retry", "Give a failed item a fresh retry budget",
		func(s *session, id uuid.UUID) error {
			return s.queue.RetryItem(id)
		})
}

func newNoteCommand(ctx *commandContext) *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "note",
		Short: "Print the note generated for an item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(cmd, false, func(s *session) error {
				id, err := resolveItem(s.queue.Snapshot(), ref)
				if err != nil {
					return err
				}
				note, err := s.manager.GetNote(cmd.Context(), s.key, id)
				if err != nil {
					return err
				}
				if ctx.wantsJSON(cmd) {
					return writeJSON(cmd, note)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), note.Content)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&ref, "item", "i", "", "Item UUID, ID prefix or queue position")
	_ = cmd.MarkFlagRequired("item")
	return cmd
}
