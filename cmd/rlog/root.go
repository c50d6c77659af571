package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	apppkg "github.com/kk-code-lab/rlog/internal/app"
	"github.com/kk-code-lab/rlog/internal/config"
	"github.com/kk-code-lab/rlog/internal/debuglog"
	"github.com/kk-code-lab/rlog/internal/logview"
	"github.com/kk-code-lab/rlog/internal/marks"
	"github.com/kk-code-lab/rlog/internal/pattern"
	"github.com/kk-code-lab/rlog/internal/scan"
	"github.com/kk-code-lab/rlog/internal/search"
	"github.com/kk-code-lab/rlog/internal/source"
)

// rootOptions are the flags shared by every command. They override the
// settings file.
type rootOptions struct {
	configPath string
	encoding   string
	delimiter  string
	columns    string
	bufferSize int
	keep       []string
	reject     []string
	only       []string
	regex      bool
	ignoreCase bool
	debugLog   string
}

func (o *rootOptions) bind(flags *pflag.FlagSet) {
	flags.StringVar(&o.configPath, "config", "", "settings file (default "+config.DefaultPath()+")")
	flags.StringVar(&o.encoding, "encoding", "", "auto, ascii, utf-8, utf-16le or utf-16be")
	flags.StringVar(&o.delimiter, "delimiter", "", "row delimiter: auto, lf, crlf, cr or a literal")
	flags.StringVar(&o.columns, "columns", "", `column delimiter, e.g. "\t"`)
	flags.IntVar(&o.bufferSize, "buffer-size", 0, "read buffer size in bytes")
	flags.StringArrayVar(&o.keep, "keep", nil, "keep lines matching `PATTERN` even if a later rule rejects them")
	flags.StringArrayVar(&o.reject, "reject", nil, "hide lines matching `PATTERN`")
	flags.StringArrayVar(&o.only, "only", nil, "show only lines matching `PATTERN`")
	flags.BoolVar(&o.regex, "regex", false, "treat patterns as regular expressions")
	flags.BoolVarP(&o.ignoreCase, "ignore-case", "i", false, "match patterns case-insensitively")
	flags.StringVar(&o.debugLog, "debug-log", "", "append diagnostics to `FILE` (same as RLOG_DEBUG=1)")
}

// load reads the settings file and applies the flags the user set.
func (o *rootOptions) load(cmd *cobra.Command) (config.Config, error) {
	if o.debugLog != "" {
		debuglog.SetOutput(o.debugLog)
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("encoding") {
		cfg.Encoding = o.encoding
	}
	if flags.Changed("delimiter") {
		cfg.RowDelimiter = o.delimiter
	}
	if flags.Changed("columns") {
		cfg.ColumnDelimiter = o.columns
	}
	if flags.Changed("buffer-size") {
		cfg.BufferSize = o.bufferSize
		cfg.WindowBytes = max(cfg.WindowBytes, int64(o.bufferSize))
	}
	cfg.Filters = o.filterRules(cfg.Filters)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// filterRules puts the flag rules in front of the configured ones. --only
// adds a final rule rejecting whatever nothing else kept.
func (o *rootOptions) filterRules(configured []config.FilterRule) []config.FilterRule {
	rule := func(expr string, action pattern.Action) config.FilterRule {
		return config.FilterRule{Pattern: expr, Regex: o.regex, IgnoreCase: o.ignoreCase, Action: action.String()}
	}
	var rules []config.FilterRule
	for _, expr := range o.only {
		rules = append(rules, rule(expr, pattern.Keep))
	}
	for _, expr := range o.keep {
		rules = append(rules, rule(expr, pattern.Keep))
	}
	for _, expr := range o.reject {
		rules = append(rules, rule(expr, pattern.Reject))
	}
	rules = append(rules, configured...)
	if len(o.only) > 0 {
		rules = append(rules, config.FilterRule{Pattern: "^", Regex: true, Action: pattern.Reject.String()})
	}
	return rules
}

func (o *rootOptions) patternOptions() pattern.Options {
	opts := pattern.Options{Regex: o.regex}
	if o.ignoreCase {
		opts.Case = pattern.CaseInsensitive
	}
	return opts
}

type viewOptions struct {
	follow  bool
	at      int64
	noMarks bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	view := viewOptions{at: -1}

	cmd := &cobra.Command{
		Use:   "rlog [flags] FILE...",
		Short: "A pager for very large log files",
		Long: `rlog pages through log files of any size without reading them whole.
Several files are shown as one log, in the order given.

When standard output is not a terminal the filtered lines are written
there instead of opening the viewer.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if !isTerminal(cmd.OutOrStdout()) {
				return dumpFiles(cmd.Context(), cmd.OutOrStdout(), cfg, args)
			}
			return runViewer(cmd.ErrOrStderr(), cfg, args, view)
		},
	}
	opts.bind(cmd.PersistentFlags())
	cmd.Flags().BoolVarP(&view.follow, "follow", "f", false, "start at the end and follow new lines")
	cmd.Flags().Int64Var(&view.at, "at", -1, "start at this byte `OFFSET`")
	cmd.Flags().BoolVar(&view.noMarks, "no-marks", false, "do not open the marks database")

	cmd.AddCommand(
		newFindCmd(opts),
		newExportCmd(opts),
		newIndexCmd(opts),
		newMarksCmd(opts),
		newClearCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runViewer(stderr io.Writer, cfg config.Config, paths []string, view viewOptions) error {
	src, err := source.New(paths...)
	if err != nil {
		return err
	}

	var store *marks.Store
	if !view.noMarks {
		store, err = marks.Open(cfg.MarksDB)
		if err != nil {
			fmt.Fprintf(stderr, "rlog: marks disabled: %v\n", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	app, err := apppkg.NewApplication(apppkg.Options{
		Config: cfg,
		Source: src,
		Paths:  paths,
		Store:  store,
		Follow: view.follow,
		Start:  view.at,
	})
	if err != nil {
		return fmt.Errorf("start viewer: %w", err)
	}
	app.Run()
	return nil
}

// openDocument indexes the lines around target and waits for the result.
func openDocument(ctx context.Context, src source.Source, cfg config.Config, target int64) (*logview.Document, error) {
	docOpts, err := logview.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	doc := logview.Open(src, docOpts, nil)
	if _, err := doc.Build(ctx, target, true); err != nil {
		doc.Close()
		return nil, err
	}
	return doc, nil
}

// exportRange writes the lines starting inside r that pass the filters. A
// negative r.End means the end of the file.
func exportRange(ctx context.Context, w io.Writer, cfg config.Config, src source.Source, r scan.ByteRange) (search.ExportStats, error) {
	doc, err := openDocument(ctx, src, cfg, max(r.Begin, 0))
	if err != nil {
		return search.ExportStats{}, err
	}
	defer doc.Close()

	stream, err := src.Open()
	if err != nil {
		return search.ExportStats{}, err
	}
	defer stream.Close()
	size, err := stream.Size()
	if err != nil {
		return search.ExportStats{}, err
	}
	if r.End < 0 || r.End > size {
		r.End = size
	}
	r.Begin = min(max(r.Begin, 0), r.End)

	rowDelim, colDelim := cfg.ExportDelimiters()
	opts, err := doc.ExportOptions([]scan.ByteRange{r}, rowDelim, colDelim)
	if err != nil {
		return search.ExportStats{}, err
	}
	opts.FileEnd = max(opts.FileEnd, size)
	return search.Export(ctx, stream, opts, w)
}

func dumpFiles(ctx context.Context, w io.Writer, cfg config.Config, paths []string) error {
	src, err := source.New(paths...)
	if err != nil {
		return err
	}
	_, err = exportRange(ctx, w, cfg, src, scan.ByteRange{Begin: 0, End: -1})
	return err
}
