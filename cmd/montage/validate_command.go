package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"montage/internal/compile"
	"montage/internal/spec"
)

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <spec.json>",
		Short: "Check a timeline spec without probing assets or rendering",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			parsed, err := spec.ParseFile(args[0])
			if err != nil {
				return err
			}

			opts := compile.OptionsFromConfig(cfg)
			if err := spec.Validate(parsed, opts.GapTolerance); err != nil {
				var verr *spec.ValidationError
				if errors.As(err, &verr) {
					out := cmd.OutOrStdout()
					for _, issue := range verr.Issues {
						fmt.Fprintln(out, issue.String())
					}
					return fmt.Errorf("spec has %d validation issue(s)", len(verr.Issues))
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Spec is valid: %d clip(s), %.3fs total declared duration\n",
				len(parsed.Videos), parsed.TotalDuration())
			return nil
		},
	}
}
