package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kk-code-lab/rlog/internal/logview"
	"github.com/kk-code-lab/rlog/internal/source"
)

func newClearCmd(opts *rootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear FILE...",
		Short: "Truncate log files to zero length",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to truncate without --yes")
			}
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			src, err := source.New(args...)
			if err != nil {
				return err
			}
			docOpts, err := logview.OptionsFromConfig(cfg)
			if err != nil {
				return err
			}
			doc := logview.Open(src, docOpts, nil)
			defer doc.Close()
			if err := doc.Clear(); err != nil {
				return err
			}
			size, err := doc.Size()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s (%d bytes left)\n", src.Name(), size)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the truncation")
	return cmd
}
