package main

import (
	"fmt"

	"fdep/internal/history"
	"fdep/internal/localgit"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [TARGET]",
	Short: "Show recent task runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyLimit < 1 {
			return fmt.Errorf("--limit must be positive")
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}

		hist, err := openHistory()
		if err != nil {
			return err
		}
		defer hist.Close()

		runs, err := hist.Recent(cmd.Context(), name, historyLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			app.console.Warn("No runs recorded")
			return nil
		}

		app.console.Print("%-5s %-19s %-12s %-20s %-9s %8s  %s\n", "ID", "STARTED", "TARGET", "TASK", "STATUS", "SECONDS", "REVISION")
		for _, r := range runs {
			app.console.Print("%s\n", formatRun(r))
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of runs to show")
}

func formatRun(r history.Record) string {
	seconds := "-"
	if r.DurationSeconds != nil {
		seconds = fmt.Sprintf("%.1f", *r.DurationSeconds)
	}
	revision := "-"
	if r.Revision != nil {
		revision = localgit.AbbreviateHash(*r.Revision)
	}
	line := fmt.Sprintf("%-5d %-19s %-12s %-20s %-9s %8s  %s",
		r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Target, r.Operation, r.Status, seconds, revision)
	if r.ErrorMessage != nil {
		line += "\n      " + *r.ErrorMessage
	}
	return line
}
