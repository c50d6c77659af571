package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kk-code-lab/rlog/internal/source"
	renderui "github.com/kk-code-lab/rlog/internal/ui/render"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	var (
		at    int64
		lines int
	)
	cmd := &cobra.Command{
		Use:   "index FILE...",
		Short: "Show what rlog detects about a file and the lines indexed around an offset",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			src, err := source.New(args...)
			if err != nil {
				return err
			}
			doc, err := openDocument(cmd.Context(), src, cfg, max(at, 0))
			if err != nil {
				return err
			}
			defer doc.Close()

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 0, 1, ' ', 0)
			span := doc.Span()
			fmt.Fprintf(tw, "encoding:\t%s\n", doc.Encoding())
			fmt.Fprintf(tw, "delimiter:\t%s\n", renderui.DelimiterName(doc.Delimiter()))
			fmt.Fprintf(tw, "length:\t%d (%s)\n", doc.FileLength(), renderui.FormatBytes(doc.FileLength()))
			fmt.Fprintf(tw, "indexed:\t%d lines [%d,%d)\n", doc.LineCount(), span.Begin, span.End)
			if err := tw.Flush(); err != nil {
				return err
			}
			if lines <= 0 {
				return nil
			}

			_, sep := cfg.ExportDelimiters()
			first := max(doc.RowOf(doc.Viewpoint()), 0)
			for row := first; row < min(first+lines, doc.LineCount()); row++ {
				line, err := doc.ReadLine(row)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%6d %10d  %s\n", row, line.Start, line.Text(sep))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&at, "at", 0, "index around this byte `OFFSET`")
	cmd.Flags().IntVarP(&lines, "lines", "n", 0, "also print `N` indexed lines starting at --at")
	return cmd
}
