package present

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/KaramelBytes/csvoracle-cli/internal/agent"
	"github.com/KaramelBytes/csvoracle-cli/internal/table"
)

func tbl(cols []string, rows ...[]string) *table.Table {
	t := table.New(cols...)
	for _, r := range rows {
		t.Append(r)
	}
	return t
}

func TestChoosePrefersLastTable(t *testing.T) {
	first := tbl([]string{"a"}, []string{"1"})
	last := tbl([]string{"b"}, []string{"2"})
	resp := &agent.Response{
		Output: "b is 2",
		IntermediateSteps: []agent.Step{
			{Action: agent.Action{Tool: "sql_query"}, Observation: agent.Observation{Text: "a", Table: first}},
			{Action: agent.Action{Tool: "sql_query"}, Observation: agent.Observation{Text: "b", Table: last}},
			{Action: agent.Action{Tool: "table_info"}, Observation: agent.Observation{Text: "schema"}},
		},
	}
	p := Choose(resp)
	require.True(t, p.IsTable())
	assert.Same(t, last, p.Table)
	assert.Equal(t, "b is 2", p.Answer)
}

func TestChooseFallsBackToText(t *testing.T) {
	resp := &agent.Response{
		Output:            "There are 3 rows.",
		IntermediateSteps: []agent.Step{{Observation: agent.Observation{Text: "Error: no such column"}}},
	}
	p := Choose(resp)
	assert.False(t, p.IsTable())
	assert.Equal(t, "There are 3 rows.", p.Text)

	assert.False(t, Choose(&agent.Response{Output: "hi"}).IsTable())
	assert.Equal(t, Presentation{}, Choose(nil))
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, Presentation{Text: "42"}, RenderOptions{}))
	assert.Equal(t, "42\n", buf.String())
}

func TestRenderTable(t *testing.T) {
	p := Presentation{
		Table:  tbl([]string{"region", "total"}, []string{"north", "5"}, []string{"south", "7"}, []string{"east", "1"}),
		Answer: "South leads.",
	}
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, p, RenderOptions{MaxRows: 2, WithAnswer: true}))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "South leads.\n\n"))
	assert.Contains(t, out, "region")
	assert.NotContains(t, out, "REGION")
	assert.Contains(t, out, "south")
	assert.NotContains(t, out, "east")
	assert.Contains(t, out, "... 1 more rows")

	buf.Reset()
	require.NoError(t, Render(&buf, p, RenderOptions{}))
	assert.NotContains(t, buf.String(), "South leads.")
	assert.Contains(t, buf.String(), "east")

	buf.Reset()
	require.NoError(t, Render(&buf, Presentation{Table: tbl([]string{"x"})}, RenderOptions{}))
	assert.Contains(t, buf.String(), "(no rows)")
}

func TestSteps(t *testing.T) {
	resp := &agent.Response{IntermediateSteps: []agent.Step{{
		Action:      agent.Action{Tool: "sql_query", Input: "SELECT 1"},
		Observation: agent.Observation{Text: "   1\n0  1"},
	}}}
	var buf bytes.Buffer
	require.NoError(t, Steps(&buf, resp))
	assert.Contains(t, buf.String(), "step 1: sql_query")
	assert.Contains(t, buf.String(), "Action Input: SELECT 1")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestStepsReportsWriteError(t *testing.T) {
	resp := &agent.Response{IntermediateSteps: []agent.Step{{
		Action:      agent.Action{Tool: "sql_query", Input: "SELECT 1"},
		Observation: agent.Observation{Text: "1"},
	}}}
	require.EqualError(t, Steps(failingWriter{}, resp), "disk full")
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.csv")
	src := tbl([]string{"name", "note"}, []string{"a", "has, comma"}, []string{"b", ""})
	require.NoError(t, Export(path, src))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "name,note\na,\"has, comma\"\nb,\n", string(data))
}

func TestExportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result.XLSX")
	src := tbl([]string{"name", "qty", "code"}, []string{"a", "3", "007"}, []string{"b", "1.5", ""})
	require.NoError(t, Export(path, src))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"name", "qty", "code"}, rows[0])
	assert.Equal(t, []string{"a", "3", "007"}, rows[1])
	assert.Equal(t, []string{"b", "1.5"}, rows[2])
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	err := Export(filepath.Join(t.TempDir(), "x.json"), tbl([]string{"a"}))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
	assert.Error(t, Export("x.csv", nil))
}
