// Package suggest asks a language model for starter questions about the
// combined table.
package suggest

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/csvoracle-cli/internal/ai"
	"github.com/KaramelBytes/csvoracle-cli/internal/table"
	"github.com/KaramelBytes/csvoracle-cli/internal/utils"
)

const (
	schemaPlaceholder = "{schema_info}"
	headPlaceholder   = "{head_data}"
	countPlaceholder  = "{count}"
)

// ErrBadTemplate is returned when a template lacks both data placeholders.
var ErrBadTemplate = errors.New("prompt template must contain {schema_info} or {head_data}")

// BuildPrompt fills the template with the table's schema summary and its
// first sampleRows rows.
func BuildPrompt(tmpl string, t *table.Table, sampleRows int) (string, error) {
	if t == nil {
		return "", errors.New("no table loaded")
	}
	if !strings.Contains(tmpl, schemaPlaceholder) && !strings.Contains(tmpl, headPlaceholder) {
		return "", ErrBadTemplate
	}
	if sampleRows <= 0 {
		sampleRows = 5
	}
	r := strings.NewReplacer(
		schemaPlaceholder, t.Info(),
		headPlaceholder, t.Head(sampleRows).String(),
	)
	return r.Replace(tmpl), nil
}

// Generator produces suggested questions. Zero values fall back to the
// defaults: 3 questions, 5 sample rows, temperature as given.
type Generator struct {
	Runtime     ai.Runtime
	Model       string
	Temperature float64
	Template    string
	Count       int
	SampleRows  int
	// MaxPromptTokens truncates oversized prompts; 0 disables.
	MaxPromptTokens int
	Logger          *zap.Logger
}

// Suggest returns the model's questions, or an empty list on any failure.
func (g *Generator) Suggest(ctx context.Context, t *table.Table) []string {
	log := g.Logger
	if log == nil {
		log = zap.NewNop()
	}
	count := g.Count
	if count <= 0 {
		count = 3
	}
	tmpl := strings.ReplaceAll(g.Template, countPlaceholder, strconv.Itoa(count))
	prompt, err := BuildPrompt(tmpl, t, g.SampleRows)
	if err != nil {
		log.Debug("suggestion prompt failed", zap.Error(err))
		return []string{}
	}
	if g.MaxPromptTokens > 0 {
		prompt = utils.TruncateToTokenLimit(prompt, g.MaxPromptTokens)
	}
	if g.Runtime == nil {
		log.Debug("no runtime configured for suggestions")
		return []string{}
	}
	resp, err := g.Runtime.Generate(ctx, ai.Prompt(g.Model, prompt, g.Temperature))
	if err != nil {
		log.Debug("suggestion request failed", zap.String("model", g.Model), zap.Error(err))
		return []string{}
	}
	questions, err := ParseList(resp.Text())
	if err != nil {
		log.Debug("suggestion reply not parseable", zap.Error(err), zap.Int("reply_len", len(resp.Text())))
		return []string{}
	}
	log.Debug("suggestions generated",
		zap.Int("count", len(questions)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
	)
	return questions
}
