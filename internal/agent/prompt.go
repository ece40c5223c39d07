package agent

import (
	"fmt"
	"strings"
)

const promptPrefix = `You are working with a table of data loaded into an SQLite database. The table is named ` + "`df`" + `.
You should use the tools below to answer the question posed of you:

%s

Use the following format:

Question: the input question you must answer
Thought: you should always think about what to do
Action: the action to take, should be one of [%s]
Action Input: the input to the action
Observation: the result of the action
... (this Thought/Action/Action Input/Observation can repeat N times)
Thought: I now know the final answer
Final Answer: the final answer to the original input question

Column names containing spaces or punctuation must be wrapped in double quotes.

Columns of df and their SQLite types:
%s

This is the result of ` + "`SELECT * FROM df LIMIT %d`" + `:
%s

Begin!
Question: %s
Thought:`

func buildPrompt(tools []tool, schema, head string, headRows int, question string, steps []Step) string {
	var desc strings.Builder
	names := make([]string, len(tools))
	for i, t := range tools {
		fmt.Fprintf(&desc, "%s: %s\n", t.name, t.description)
		names[i] = t.name
	}
	var b strings.Builder
	fmt.Fprintf(&b, promptPrefix,
		strings.TrimRight(desc.String(), "\n"),
		strings.Join(names, ", "),
		schema, headRows, head, question)
	for _, s := range steps {
		b.WriteString(s.Action.Log)
		b.WriteString("\nObservation: ")
		b.WriteString(s.Observation.Text)
		b.WriteString("\nThought:")
	}
	return b.String()
}
