package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/spf13/cobra"
)

const maxErrorWidth = 48

// wantsJSON reports whether output should be JSON: on request, or whenever
// stdout is not a terminal.
func (c *commandContext) wantsJSON(cmd *cobra.Command) bool {
	return c.jsonOutput || !isTerminal(cmd.OutOrStdout())
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSnapshot writes the queue as JSON or as a summary line and table.
func (c *commandContext) printSnapshot(cmd *cobra.Command, snap curriculum.Snapshot) error {
	if c.wantsJSON(cmd) {
		return writeJSON(cmd, snap)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Workspace %s  run: %s  circuit: %s (%d/%d)\n",
		c.workspace, snap.RunState, snap.CircuitStatus,
		snap.Circuit.ConsecutiveFailures, snap.Circuit.Threshold)
	if snap.Circuit.Tripped && snap.Circuit.LastReason != "" {
		fmt.Fprintf(out, "Last failure: %s\n", snap.Circuit.LastReason)
	}
	if len(snap.Items) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return nil
	}

	fmt.Fprintln(out, renderQueueTable(snap.Items))
	if n := countStatus(snap.Items, domain.ItemStatusPausedForReview); n > 0 {
		fmt.Fprintf(out, "%d item(s) await review: approve or reject them, then run again\n", n)
	}
	if snap.Exhausted > 0 {
		fmt.Fprintf(out, "%d item(s) used up their retries: fix the cause, then retry them\n", snap.Exhausted)
	}
	return nil
}

func renderQueueTable(items []domain.QueueItem) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "ID", "Topic", "Status", "Retries", "Error"})

	for i, item := range items {
		tw.AppendRow(table.Row{
			strconv.Itoa(i + 1),
			item.ID.String()[:8],
			item.Topic,
			string(item.Status),
			strconv.Itoa(item.RetryCount),
			truncate(item.ErrorMsg, maxErrorWidth),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func countStatus(items []domain.QueueItem, status domain.ItemStatus) int {
	n := 0
	for _, item := range items {
		if item.Status == status {
			n++
		}
	}
	return n
}

func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}
