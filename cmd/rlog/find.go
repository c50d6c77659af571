package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kk-code-lab/rlog/internal/pattern"
	"github.com/kk-code-lab/rlog/internal/search"
	"github.com/kk-code-lab/rlog/internal/source"
)

func newFindCmd(opts *rootOptions) *cobra.Command {
	var (
		from     int64
		backward bool
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "find PATTERN FILE...",
		Short: "Print the offset and text of lines matching PATTERN",
		Long: `find prints the first line matching PATTERN after --from, or before it
with --backward, as "OFFSET: TEXT". Filters apply: hidden lines never match.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			pat, err := pattern.Compile(args[0], opts.patternOptions())
			if err != nil {
				return err
			}
			src, err := source.New(args[1:]...)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			doc, err := openDocument(ctx, src, cfg, max(from, 0))
			if err != nil {
				return err
			}
			defer doc.Close()

			stream, err := src.Open()
			if err != nil {
				return err
			}
			defer stream.Close()
			size, err := stream.Size()
			if err != nil {
				return err
			}

			start, skip := min(max(from, 0), size), false
			found := 0
			for {
				findOpts, err := doc.FindOptions(pat, start, backward, skip)
				if err != nil {
					return err
				}
				findOpts.FileEnd = size
				match, ok, err := search.Find(ctx, stream, findOpts)
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n", match.Offset, match.Text)
				found++
				if !all || (backward && match.Offset == 0) {
					break
				}
				start, skip = match.Offset, !backward
			}
			if found == 0 {
				return fmt.Errorf("pattern %q not found", args[0])
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&from, "from", 0, "start searching at this byte `OFFSET`")
	cmd.Flags().BoolVarP(&backward, "backward", "b", false, "search toward the start of the file")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "print every match, not just the first")
	return cmd
}
