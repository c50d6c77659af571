package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kk-code-lab/rlog/internal/scan"
	"github.com/kk-code-lab/rlog/internal/source"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		output string
		from   int64
		to     int64
	)
	cmd := &cobra.Command{
		Use:   "export FILE...",
		Short: "Write the filtered lines of a byte range as UTF-8",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if to >= 0 && to < from {
				return fmt.Errorf("--to %d is before --from %d", to, from)
			}
			src, err := source.New(args...)
			if err != nil {
				return err
			}

			ctx, r := cmd.Context(), scan.ByteRange{Begin: from, End: to}
			if output == "" || output == "-" {
				_, err = exportRange(ctx, cmd.OutOrStdout(), cfg, src, r)
				return err
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			stats, err := exportRange(ctx, f, cfg, src, r)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d lines to %s\n", stats.Lines, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to `FILE` instead of standard output")
	cmd.Flags().Int64Var(&from, "from", 0, "first byte `OFFSET`; a line starting at or after it is included")
	cmd.Flags().Int64Var(&to, "to", -1, "end byte `OFFSET`, exclusive; the end of the file by default")
	return cmd
}
