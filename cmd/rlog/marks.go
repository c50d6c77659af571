package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kk-code-lab/rlog/internal/marks"
)

func newMarksCmd(opts *rootOptions) *cobra.Command {
	var (
		add    int64
		label  string
		remove int64
		forget bool
	)
	cmd := &cobra.Command{
		Use:   "marks FILE...",
		Short: "List or edit the bookmarks and remembered position of a log",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("label") && !flags.Changed("add") {
				return errors.New("--label needs --add")
			}

			store, err := marks.Open(cfg.MarksDB)
			if err != nil {
				return err
			}
			defer store.Close()
			key := marks.Key(args...)
			out := cmd.OutOrStdout()

			switch {
			case forget:
				return store.Forget(key)
			case flags.Changed("delete"):
				return store.DeleteMark(key, remove)
			case flags.Changed("add"):
				if add < 0 {
					return fmt.Errorf("invalid offset %d", add)
				}
				m, err := store.AddMark(key, add, label)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "added mark %d at %d\n", m.ID, m.Offset)
				return nil
			}

			pos, ok, err := store.Viewpoint(key)
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintf(out, "position %d of %d (%s)\n", pos.Offset, pos.Size, pos.Updated.Format("2006-01-02 15:04"))
			}
			list, err := store.Marks(key)
			if err != nil {
				return err
			}
			for _, m := range list {
				fmt.Fprintf(out, "%d\t%d\t%s\n", m.ID, m.Offset, m.Label)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&add, "add", 0, "bookmark the line starting at `OFFSET`")
	cmd.Flags().StringVar(&label, "label", "", "label for --add")
	cmd.Flags().Int64Var(&remove, "delete", 0, "delete the mark with this `ID`")
	cmd.Flags().BoolVar(&forget, "forget", false, "drop the position and every mark of the log")
	cmd.MarkFlagsMutuallyExclusive("add", "delete", "forget")
	return cmd
}
