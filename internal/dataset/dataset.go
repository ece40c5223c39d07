// Package dataset runs the ingest pipeline: extract the archive, find the
// CSV files, apply the file selection and load the combined table.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/KaramelBytes/csvoracle-cli/internal/archive"
	"github.com/KaramelBytes/csvoracle-cli/internal/table"
)

var (
	// ErrNoCSV means the archive, or the selection, contains no CSV file.
	ErrNoCSV = errors.New("no CSV files found in the archive")
	// ErrUnknownFile means a selected file is not among the archive's CSV files.
	ErrUnknownFile = errors.New("file not found in the archive")
)

// Options configure ingestion. An empty Files list selects every CSV.
type Options struct {
	Dir          string
	Files        []string
	Delimiter    rune
	SourceColumn string
	Logger       *zap.Logger
}

// Dataset is the result of ingestion.
type Dataset struct {
	Dir       string
	Available []string
	Files     []string
	Table     *table.Table
	Warnings  []table.Warning
}

// Ingest extracts data into opts.Dir and loads the selected CSV files.
func Ingest(ctx context.Context, data []byte, opts Options) (*Dataset, error) {
	if opts.Dir == "" {
		return nil, errors.New("extraction directory not set")
	}
	dir, err := archive.Extract(data, opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("extract archive: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Reload(ctx, dir, opts.Files, opts)
}

// Reload loads files from an already extracted directory.
func Reload(ctx context.Context, dir string, files []string, opts Options) (*Dataset, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	available, err := archive.FindCSVFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("locate csv files: %w", err)
	}
	if len(available) == 0 {
		return nil, ErrNoCSV
	}
	selected, err := selectFiles(available, files)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, warnings, err := table.Load(dir, selected, table.LoadOptions{
		Delimiter:    opts.Delimiter,
		SourceColumn: opts.SourceColumn,
	})
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoCSV
	}
	for _, w := range warnings {
		log.Debug("skipped malformed row", zap.String("file", w.File), zap.Int("line", w.Line), zap.String("reason", w.Reason))
	}
	log.Debug("dataset loaded",
		zap.Strings("files", selected),
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.Columns)),
	)
	return &Dataset{
		Dir:       dir,
		Available: available,
		Files:     selected,
		Table:     t,
		Warnings:  warnings,
	}, nil
}

func selectFiles(available, want []string) ([]string, error) {
	if len(want) == 0 {
		return available, nil
	}
	out := make([]string, 0, len(want))
	for _, name := range want {
		if !slices.Contains(available, name) {
			return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnknownFile, name, available)
		}
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out, nil
}
