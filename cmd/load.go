package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/csvoracle-cli/internal/dataset"
	"github.com/KaramelBytes/csvoracle-cli/internal/session"
	"github.com/KaramelBytes/csvoracle-cli/internal/utils"
)

var (
	loadFiles        []string
	loadDelimiter    string
	loadSourceColumn string
	loadSuggest      bool
	loadForce        bool
)

var loadCmd = &cobra.Command{
	Use:   "load <archive.zip>",
	Short: "Extract a ZIP of CSV files and combine them into one table",
	Example: `  csvoracle load sales.zip
  csvoracle load sales.zip --files jan.csv,feb.csv --source-column file
  csvoracle load exports.zip --delimiter ';' --suggest=false`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfig(); err != nil {
			return err
		}
		delim, err := parseDelimiter(loadDelimiter)
		if err != nil {
			return err
		}
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		name := filepath.Base(path)
		sum := utils.SHA256Hex(data)
		dir, err := workDir()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ctx := cmd.Context()

		prev, err := session.Load(dir)
		if err != nil && !errors.Is(err, session.ErrNoSession) {
			logger.Warn("ignoring unreadable session", zap.Error(err))
		}
		opts := dataset.Options{
			Files:        loadFiles,
			Delimiter:    delim,
			SourceColumn: loadSourceColumn,
			Logger:       logger,
		}

		var (
			ds *dataset.Dataset
			s  *session.Session
		)
		reuse := !loadForce && prev.Matches(name, sum)
		if reuse {
			ds, err = dataset.Reload(ctx, prev.ExtractDir(), loadFiles, opts)
			if err != nil {
				return err
			}
			s = prev
			if !slices.Equal(s.Files, ds.Files) || s.Delimiter != loadDelimiter || s.SourceColumn != loadSourceColumn {
				// same archive, different table: earlier answers no longer apply
				s.History = []session.Exchange{}
				s.SetSuggestions(nil)
			}
			logger.Debug("reusing extracted archive", zap.String("archive", name))
		} else {
			if err := session.Clear(dir); err != nil {
				return err
			}
			s = session.New(dir, name, sum)
			opts.Dir = s.ExtractDir()
			ds, err = dataset.Ingest(ctx, data, opts)
			if err != nil {
				return err
			}
		}
		s.Files = ds.Files
		s.Delimiter = loadDelimiter
		s.SourceColumn = loadSourceColumn
		s.Rows = ds.Table.Len()
		s.Columns = ds.Table.Columns

		for _, w := range ds.Warnings {
			fmt.Fprintf(out, "⚠ Skipped %s\n", w)
		}
		fmt.Fprintf(out, "✓ Loaded %s: %d rows × %d columns from %d file(s)\n", name, ds.Table.Len(), len(ds.Table.Columns), len(ds.Files))
		for _, f := range ds.Files {
			fmt.Fprintf(out, "  - %s\n", f)
		}

		if loadSuggest && len(s.Suggestions) == 0 {
			s.SetSuggestions(suggestQuestions(ctx, ds.Table, 0))
		}
		if err := s.Save(); err != nil {
			return err
		}
		if loadSuggest {
			printSuggestions(out, s.Suggestions)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loadCmd)
	loadCmd.Flags().StringSliceVar(&loadFiles, "files", nil, "comma-separated CSV files to load (default: all)")
	loadCmd.Flags().StringVar(&loadDelimiter, "delimiter", "", "CSV delimiter: auto|,|;|tab|pipe (default: sniff per file)")
	loadCmd.Flags().StringVar(&loadSourceColumn, "source-column", "", "add a column with each row's source file name")
	loadCmd.Flags().BoolVar(&loadSuggest, "suggest", true, "ask the model for starter questions")
	loadCmd.Flags().BoolVar(&loadForce, "force", false, "re-extract even when the archive is unchanged")
}
