package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/csvoracle-cli/internal/agent"
	"github.com/KaramelBytes/csvoracle-cli/internal/ai"
	"github.com/KaramelBytes/csvoracle-cli/internal/present"
	"github.com/KaramelBytes/csvoracle-cli/internal/session"
	"github.com/KaramelBytes/csvoracle-cli/internal/table"
)

var (
	askInteractive bool
	askExport      string
	askWithAnswer  bool
	askShowSteps   bool
	askJSON        bool
	askPick        int
	askMaxRows     int
)

// askResult is the --json shape of one answered question.
type askResult struct {
	Question string       `json:"question"`
	Output   string       `json:"output"`
	Table    *table.Table `json:"table,omitempty"`
	Steps    []agent.Step `json:"intermediate_steps,omitempty"`
	Usage    ai.Usage     `json:"usage"`
	CostUSD  *float64     `json:"estimated_cost_usd,omitempty"`
	Model    string       `json:"model"`
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a natural-language question about the loaded data",
	Example: `  csvoracle ask "Which region sold the most units?"
  csvoracle ask --pick 1 --with-answer
  csvoracle ask "Top 10 customers by revenue" --export top10.xlsx
  csvoracle ask -i`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfig(); err != nil {
			return err
		}
		s, err := openSession()
		if err != nil {
			return err
		}
		question, err := resolveQuestion(s, args)
		if err != nil {
			return err
		}
		if question == "" && !askInteractive {
			return errors.New("a question is required (or use -i for interactive mode)")
		}

		ctx := cmd.Context()
		t, err := reloadTable(ctx, s)
		if err != nil {
			return err
		}
		rt, provider, err := newRuntime(cfg, flagProvider)
		if err != nil {
			return err
		}
		model := modelFor(cfg.AgentModel, provider)
		ag, err := agent.New(rt, t, agent.Options{
			Model:              model,
			Temperature:        cfg.AgentTemperature,
			MaxIterations:      cfg.AgentMaxIterations,
			MaxObservationRows: cfg.MaxObservationRows,
			Logger:             logger,
		})
		if err != nil {
			return err
		}
		defer ag.Close()

		out := cmd.OutOrStdout()
		if question != "" {
			if err := answer(ctx, out, ag, s, question, provider, model); err != nil {
				return err
			}
		}
		if askInteractive {
			return repl(ctx, cmd.InOrStdin(), out, ag, s, provider, model)
		}
		return nil
	},
}

// resolveQuestion returns the positional question or the --pick'ed suggestion.
func resolveQuestion(s *session.Session, args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	if askPick <= 0 {
		return "", nil
	}
	if askPick > len(s.Suggestions) {
		return "", fmt.Errorf("no suggestion #%d (have %d; run 'csvoracle suggest')", askPick, len(s.Suggestions))
	}
	return s.Suggestions[askPick-1], nil
}

func answer(ctx context.Context, out io.Writer, ag agent.Agent, s *session.Session, question, provider, model string) error {
	resp, err := ag.Invoke(ctx, question)
	if err != nil {
		return explainRuntimeError(err, provider, model)
	}
	p := present.Choose(resp)
	logger.Debug("question answered",
		zap.Int("steps", len(resp.IntermediateSteps)),
		zap.Bool("tabular", p.IsTable()),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	if askJSON {
		res := askResult{
			Question: question,
			Output:   resp.Output,
			Table:    p.Table,
			Usage:    resp.Usage,
			Model:    model,
		}
		if askShowSteps {
			res.Steps = resp.IntermediateSteps
		}
		if cost, ok := ai.EstimateCostUSD(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens); ok {
			res.CostUSD = &cost
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		if askShowSteps {
			if err := present.Steps(out, resp); err != nil {
				return err
			}
		}
		if err := present.Render(out, p, present.RenderOptions{MaxRows: askMaxRows, WithAnswer: askWithAnswer}); err != nil {
			return err
		}
	}

	if askExport != "" {
		if !p.IsTable() {
			fmt.Fprintln(out, "⚠ Answer is not tabular; nothing exported")
		} else if err := present.Export(askExport, p.Table); err != nil {
			return fmt.Errorf("export: %w", err)
		} else if !askJSON {
			fmt.Fprintf(out, "✓ Exported %d rows to %s\n", p.Table.Len(), askExport)
		}
	}

	s.AddExchange(question, resp.Output, len(resp.IntermediateSteps), p.IsTable())
	return s.Save()
}

func repl(ctx context.Context, in io.Reader, out io.Writer, ag agent.Agent, s *session.Session, provider, model string) error {
	fmt.Fprintf(out, "Asking about %s (%d rows). Type 'exit' to quit, a number to ask a suggested question.\n", s.ArchiveName, s.Rows)
	printSuggestions(out, s.Suggestions)
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit", ":q":
			return nil
		}
		if n, err := strconv.Atoi(line); err == nil {
			if n < 1 || n > len(s.Suggestions) {
				fmt.Fprintf(out, "No suggestion #%d\n", n)
				continue
			}
			line = s.Suggestions[n-1]
			fmt.Fprintf(out, "Q: %s\n", line)
		}
		if err := answer(ctx, out, ag, s, line, provider, model); err != nil {
			fmt.Fprintln(out, "✗ Error:", err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVarP(&askInteractive, "interactive", "i", false, "keep asking questions read from stdin")
	askCmd.Flags().StringVar(&askExport, "export", "", "write the tabular answer to a .csv or .xlsx file")
	askCmd.Flags().BoolVar(&askWithAnswer, "with-answer", false, "print the textual answer above a tabular result")
	askCmd.Flags().BoolVar(&askShowSteps, "show-steps", false, "print the agent's intermediate steps")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the result as JSON")
	askCmd.Flags().IntVar(&askPick, "pick", 0, "ask suggested question number N")
	askCmd.Flags().IntVar(&askMaxRows, "max-rows", 50, "maximum table rows to print (0 = all)")
}
