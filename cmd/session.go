package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/csvoracle-cli/internal/config"
	"github.com/KaramelBytes/csvoracle-cli/internal/dataset"
	"github.com/KaramelBytes/csvoracle-cli/internal/session"
	"github.com/KaramelBytes/csvoracle-cli/internal/suggest"
	"github.com/KaramelBytes/csvoracle-cli/internal/table"
)

func workDir() (string, error) {
	if cfg != nil && cfg.WorkDir != "" {
		return cfg.WorkDir, nil
	}
	dir, err := cfgpkg.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "work"), nil
}

func openSession() (*session.Session, error) {
	dir, err := workDir()
	if err != nil {
		return nil, err
	}
	return session.Load(dir)
}

// reloadTable re-reads the session's selected files from the extraction.
func reloadTable(ctx context.Context, s *session.Session) (*table.Table, error) {
	delim, err := parseDelimiter(s.Delimiter)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.Reload(ctx, s.ExtractDir(), s.Files, dataset.Options{
		Delimiter:    delim,
		SourceColumn: s.SourceColumn,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("reload %s: %w", s.ArchiveName, err)
	}
	return ds.Table, nil
}

func parseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case ";", "semicolon":
		return ';', nil
	case "\t", "tab":
		return '\t', nil
	case "|", "pipe":
		return '|', nil
	default:
		return 0, fmt.Errorf("unsupported delimiter: %q (use auto|,|;|tab|pipe)", s)
	}
}

// suggestQuestions needs cfg loaded. It never fails: a missing runtime or a
// bad reply yields no suggestions.
func suggestQuestions(ctx context.Context, t *table.Table, count int) []string {
	rt, provider, err := newRuntime(cfg, flagProvider)
	if err != nil {
		logger.Debug("no runtime for suggestions", zap.Error(err))
		return []string{}
	}
	g := &suggest.Generator{
		Runtime:     rt,
		Model:       modelFor(cfg.SuggestionModel, provider),
		Temperature: cfg.SuggestionTemperature,
		Template:    cfg.SuggestionTemplate(),
		Count:       cfg.SuggestionCount,
		SampleRows:  cfg.SampleRows,
		Logger:      logger,
	}
	if count > 0 {
		g.Count = count
	}
	return g.Suggest(ctx, t)
}

func ensureConfig() error {
	if cfg != nil {
		return nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}
