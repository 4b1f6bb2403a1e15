package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"montage/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent render runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			journal, err := history.Open(cfg.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer journal.Close()

			runs, err := journal.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No renders recorded yet.")
				return nil
			}

			headers := []string{"Started", "Status", "Spec", "Output", "Digest", "Duration"}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					runStatus(run),
					run.SpecPath,
					run.OutputPath,
					shortDigest(run.PlanDigest),
					runElapsed(run),
				})
			}
			fmt.Fprintln(out, renderTable(headers, rows, 5))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show")
	return cmd
}

func runStatus(run history.Run) string {
	if run.Status == history.StatusFailed && run.ErrorMessage != "" {
		message := run.ErrorMessage
		if idx := strings.IndexByte(message, '\n'); idx >= 0 {
			message = message[:idx]
		}
		if len(message) > 60 {
			message = message[:57] + "..."
		}
		return fmt.Sprintf("%s: %s", run.Status, message)
	}
	return run.Status
}

func runElapsed(run history.Run) string {
	if run.FinishedAt.IsZero() {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
