// Package present turns an agent response into what the user sees.
package present

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/KaramelBytes/csvoracle-cli/internal/agent"
	"github.com/KaramelBytes/csvoracle-cli/internal/table"
)

// Presentation is either a table or text. Answer always holds the agent's
// textual output so callers can show it alongside a table.
type Presentation struct {
	Table  *table.Table
	Text   string
	Answer string
}

// IsTable reports whether a tabular observation was chosen.
func (p Presentation) IsTable() bool { return p.Table != nil }

// Choose prefers the last tabular observation in the intermediate steps and
// falls back to the textual output.
func Choose(resp *agent.Response) Presentation {
	if resp == nil {
		return Presentation{}
	}
	for i := len(resp.IntermediateSteps) - 1; i >= 0; i-- {
		if obs := resp.IntermediateSteps[i].Observation; obs.Tabular() {
			return Presentation{Table: obs.Table, Answer: resp.Output}
		}
	}
	return Presentation{Text: resp.Output, Answer: resp.Output}
}

// RenderOptions controls table output. MaxRows <= 0 prints every row.
type RenderOptions struct {
	MaxRows    int
	WithAnswer bool
}

// Render writes p to w.
func Render(w io.Writer, p Presentation, opts RenderOptions) error {
	if !p.IsTable() {
		_, err := fmt.Fprintln(w, p.Text)
		return err
	}
	if opts.WithAnswer && strings.TrimSpace(p.Answer) != "" {
		if _, err := fmt.Fprintf(w, "%s\n\n", p.Answer); err != nil {
			return err
		}
	}
	t := p.Table
	rows := t.Rows
	more := 0
	if opts.MaxRows > 0 && len(rows) > opts.MaxRows {
		more = len(rows) - opts.MaxRows
		rows = rows[:opts.MaxRows]
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.Columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.AppendBulk(rows)
	tw.Render()

	switch {
	case t.Len() == 0:
		_, err := fmt.Fprintln(w, "(no rows)")
		return err
	case more > 0:
		_, err := fmt.Fprintf(w, "... %d more rows\n", more)
		return err
	}
	return nil
}

// Steps writes the intermediate steps in the agent's trace format.
func Steps(w io.Writer, resp *agent.Response) error {
	if resp == nil {
		return nil
	}
	var b strings.Builder
	for i, s := range resp.IntermediateSteps {
		fmt.Fprintf(&b, "── step %d: %s\n", i+1, s.Action.Tool)
		if s.Action.Input != "" {
			fmt.Fprintf(&b, "Action Input: %s\n", s.Action.Input)
		}
		fmt.Fprintf(&b, "Observation:\n%s\n\n", s.Observation.Text)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
