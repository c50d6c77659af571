package logview

import (
	"github.com/kk-code-lab/rlog/internal/config"
	"github.com/kk-code-lab/rlog/internal/lineindex"
)

// OptionsFromConfig turns loaded settings into document options.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	enc, auto, err := cfg.ResolveEncoding()
	if err != nil {
		return Options{}, err
	}
	filters, err := cfg.FilterList()
	if err != nil {
		return Options{}, err
	}
	highlights, err := cfg.HighlightList()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Index: lineindex.Config{
			BufferSize:   cfg.BufferSize,
			WindowBytes:  cfg.WindowBytes,
			MaxLines:     cfg.IndexLines,
			Encoding:     enc,
			AutoEncoding: auto,
			RowDelimiter: cfg.RowDelimiterText(),
			Filters:      filters,
		},
		CacheSlots:      cfg.CacheSlots,
		ColumnDelimiter: cfg.ColumnDelimiterText(),
		TabWidth:        cfg.TabWidth,
		Sanitize:        true,
		Highlights:      highlights,
	}, nil
}
