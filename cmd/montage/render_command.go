package main

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"montage/internal/encode"
	"montage/internal/history"
	"montage/internal/logging"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "render <spec.json>",
		Short: "Compile a spec and render the final video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			lock := flock.New(filepath.Join(cfg.Paths.WorkspaceDir, "montage.lock"))
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire render lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another render is already running in %s", cfg.Paths.WorkspaceDir)
			}
			defer func() { _ = lock.Unlock() }()

			plan, assets, cleanup, err := compileSpec(cmd.Context(), cfg, ctx, args[0])
			if err != nil {
				return err
			}
			defer cleanup()

			journal, err := history.Open(cfg.Paths.HistoryDB)
			if err != nil {
				return err
			}
			defer journal.Close()

			runID := uuid.NewString()
			if err := journal.RecordStart(cmd.Context(), runID, args[0], plan.Digest(), outputPath); err != nil {
				return err
			}

			client := encode.New(cfg, encode.WithLogger(logger))
			renderErr := client.Render(cmd.Context(), plan, assets, outputPath)
			if err := journal.RecordFinish(cmd.Context(), runID, renderErr); err != nil {
				logger.Warn("record run outcome", logging.Error(err))
			}
			if renderErr != nil {
				return renderErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s (%s, digest %s)\n",
				outputPath, formatDuration(plan.TotalDuration), plan.Digest()[:12])
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "out", "o", "output.mp4", "Destination for the rendered video")
	return cmd
}
