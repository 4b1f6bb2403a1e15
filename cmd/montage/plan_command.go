package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"montage/internal/compile"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var summary bool

	cmd := &cobra.Command{
		Use:   "plan <spec.json>",
		Short: "Compile a spec into a composition plan without rendering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			plan, _, cleanup, err := compileSpec(cmd.Context(), cfg, ctx, args[0])
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			if summary {
				fmt.Fprintln(out, planSummary(plan))
				fmt.Fprintf(out, "digest: %s\n", plan.Digest())
				return nil
			}

			if outputPath != "" {
				file, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("create plan file: %w", err)
				}
				defer file.Close()
				return plan.Encode(file)
			}
			return plan.Encode(out)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "Write the plan JSON to a file instead of stdout")
	cmd.Flags().BoolVar(&summary, "summary", false, "Print an operation summary table instead of JSON")
	return cmd
}

func planSummary(plan *compile.Plan) string {
	headers := []string{"#", "Op", "Detail"}
	rows := make([][]string, 0, len(plan.Ops))
	for i, op := range plan.Ops {
		rows = append(rows, []string{strconv.Itoa(i + 1), string(op.Kind), opDetail(op)})
	}
	return renderTable(headers, rows, 0)
}

func opDetail(op compile.Op) string {
	switch op.Kind {
	case compile.OpTrim:
		return fmt.Sprintf("segment %d: %s [%.3f..%.3f] -> slot [%.3f..%.3f]",
			op.Trim.Segment, op.Trim.Source, op.Trim.TrimIn, op.Trim.TrimOut, op.Trim.SlotStart, op.Trim.SlotEnd)
	case compile.OpSpeed:
		return fmt.Sprintf("segment %d: factor %.4f", op.Speed.Segment, op.Speed.Factor)
	case compile.OpScale:
		return fmt.Sprintf("segment %d: %dx%d @ %g fps", op.Scale.Segment, op.Scale.Width, op.Scale.Height, op.Scale.FPS)
	case compile.OpOverlay:
		return fmt.Sprintf("%s z=%d windows=%d", op.Overlay.Source, op.Overlay.Z, len(op.Overlay.Windows))
	case compile.OpSubtitles:
		return fmt.Sprintf("%d cue(s)", len(op.Subtitles.Cues))
	case compile.OpMix:
		layer := op.Mix.Layer
		return fmt.Sprintf("%s (%s) offset %.3f duration %.3f", layer.ID, layer.Kind, layer.Offset, layer.Duration)
	case compile.OpConcat:
		return fmt.Sprintf("%d segment(s)", op.Concat.Segments)
	case compile.OpFinalize:
		return fmt.Sprintf("%dx%d @ %g fps, %s",
			op.Finalize.Width, op.Finalize.Height, op.Finalize.FPS, formatDuration(op.Finalize.TotalDuration))
	default:
		return ""
	}
}
