// Package agent answers natural-language questions about the combined table
// with a zero-shot ReAct loop: the model picks a tool, the agent runs it and
// feeds the observation back until the model gives a final answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/csvoracle-cli/internal/ai"
	"github.com/KaramelBytes/csvoracle-cli/internal/table"
)

// StoppedOutput is the answer returned when the loop runs out of iterations or time.
const StoppedOutput = "Agent stopped due to iteration limit or time limit."

// ExceptionTool names the pseudo-tool recorded for unparseable model output.
const ExceptionTool = "_Exception"

const headRows = 5

// Response is the agent's final answer plus the steps that led to it.
type Response struct {
	Output            string   `json:"output"`
	IntermediateSteps []Step   `json:"intermediate_steps"`
	Usage             ai.Usage `json:"usage"`
}

// Step is one tool call and what it returned.
type Step struct {
	Action      Action      `json:"action"`
	Observation Observation `json:"observation"`
}

// Action is a tool call requested by the model. Log holds the raw model text.
type Action struct {
	Tool  string `json:"tool"`
	Input string `json:"tool_input"`
	Log   string `json:"log"`
}

// Observation is a tool result. Table is set for tabular results; Text is
// what the model saw.
type Observation struct {
	Text  string       `json:"text"`
	Table *table.Table `json:"table,omitempty"`
}

// Tabular reports whether the observation carries a result set.
func (o Observation) Tabular() bool { return o.Table != nil }

// Agent answers a question about a table.
type Agent interface {
	Invoke(ctx context.Context, question string) (*Response, error)
}

// Options tune the loop. Zero values take the defaults.
type Options struct {
	Model              string
	Temperature        float64
	MaxIterations      int
	MaxExecutionTime   time.Duration
	MaxObservationRows int
	Logger             *zap.Logger
}

// SQLAgent runs the ReAct loop against the table loaded into SQLite.
type SQLAgent struct {
	rt     ai.Runtime
	store  *Store
	opts   Options
	tools  []tool
	head   string
	schema string
	log    *zap.Logger
}

type tool struct {
	name        string
	description string
	run         func(ctx context.Context, input string) (Observation, error)
}

// New loads t into an in-memory database and prepares the agent.
func New(rt ai.Runtime, t *table.Table, opts Options) (*SQLAgent, error) {
	if rt == nil {
		return nil, errors.New("agent requires a runtime")
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 15
	}
	if opts.MaxObservationRows <= 0 {
		opts.MaxObservationRows = 50
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	store, err := OpenStore(context.Background(), t)
	if err != nil {
		return nil, fmt.Errorf("load table: %w", err)
	}
	a := &SQLAgent{
		rt:     rt,
		store:  store,
		opts:   opts,
		head:   t.Head(headRows).String(),
		schema: store.Schema(),
		log:    opts.Logger,
	}
	a.tools = []tool{
		{
			name:        "sql_query",
			description: "Input is a single SQLite SELECT statement over table df. Output is the result set. Only read-only queries are allowed.",
			run:         a.runQuery,
		},
		{
			name:        "table_info",
			description: "Input is ignored. Output is the schema of df: row count, columns, non-null counts and types.",
			run: func(context.Context, string) (Observation, error) {
				return Observation{Text: t.Info()}, nil
			},
		},
	}
	return a, nil
}

// Close releases the in-memory database.
func (a *SQLAgent) Close() error {
	return a.store.Close()
}

// Invoke asks the model to answer question. Runtime failures abort with an
// error; tool failures and malformed replies are fed back to the model.
func (a *SQLAgent) Invoke(ctx context.Context, question string) (*Response, error) {
	resp := &Response{IntermediateSteps: []Step{}}
	start := time.Now()
	for i := 0; i < a.opts.MaxIterations; i++ {
		if a.opts.MaxExecutionTime > 0 && time.Since(start) >= a.opts.MaxExecutionTime {
			break
		}
		prompt := buildPrompt(a.tools, a.schema, a.head, headRows, question, resp.IntermediateSteps)
		req := ai.Prompt(a.opts.Model, prompt, a.opts.Temperature)
		req.Stop = []string{observationMarker}

		a.log.Debug("agent iteration", zap.Int("iteration", i+1), zap.Int("steps", len(resp.IntermediateSteps)))
		out, err := a.rt.Generate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("agent iteration %d: %w", i+1, err)
		}
		resp.Usage.PromptTokens += out.Usage.PromptTokens
		resp.Usage.CompletionTokens += out.Usage.CompletionTokens
		resp.Usage.TotalTokens += out.Usage.TotalTokens

		next, err := parseOutput(out.Text())
		if err != nil {
			var pe *parseError
			if !errors.As(err, &pe) {
				return nil, err
			}
			a.log.Debug("unparseable model output", zap.String("observation", pe.observation))
			resp.IntermediateSteps = append(resp.IntermediateSteps, Step{
				Action:      Action{Tool: ExceptionTool, Input: pe.observation, Log: pe.output},
				Observation: Observation{Text: pe.observation},
			})
			continue
		}
		if next.done {
			resp.Output = next.final
			a.log.Debug("agent finished", zap.Int("iterations", i+1))
			return resp, nil
		}
		obs := a.runTool(ctx, *next.action)
		resp.IntermediateSteps = append(resp.IntermediateSteps, Step{Action: *next.action, Observation: obs})
	}
	a.log.Info("agent stopped early",
		zap.Int("max_iterations", a.opts.MaxIterations),
		zap.Duration("elapsed", time.Since(start)),
	)
	resp.Output = StoppedOutput
	return resp, nil
}

func (a *SQLAgent) runTool(ctx context.Context, act Action) Observation {
	names := make([]string, len(a.tools))
	for i, t := range a.tools {
		names[i] = t.name
		if t.name != act.Tool {
			continue
		}
		obs, err := t.run(ctx, act.Input)
		if err != nil {
			a.log.Debug("tool failed", zap.String("tool", t.name), zap.Error(err))
			return Observation{Text: "Error: " + err.Error()}
		}
		return obs
	}
	return Observation{Text: fmt.Sprintf("%s is not a valid tool, try one of %v.", act.Tool, names)}
}

func (a *SQLAgent) runQuery(ctx context.Context, input string) (Observation, error) {
	res, err := a.store.Query(ctx, input)
	if err != nil {
		return Observation{}, err
	}
	text := res.Head(a.opts.MaxObservationRows).String()
	if res.Len() > a.opts.MaxObservationRows {
		text += fmt.Sprintf("\n[%d rows x %d columns, first %d shown]", res.Len(), len(res.Columns), a.opts.MaxObservationRows)
	}
	return Observation{Text: text, Table: res}, nil
}
