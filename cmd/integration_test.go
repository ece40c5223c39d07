package cmd

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/KaramelBytes/csvoracle-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/csvoracle-cli/internal/config"
	"github.com/KaramelBytes/csvoracle-cli/internal/session"
)

// fakeRuntime answers suggestion prompts with a list and agent prompts with
// one SQL step followed by a final answer.
type fakeRuntime struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	prompt := req.Messages[len(req.Messages)-1].Content
	var reply string
	switch {
	case strings.Contains(prompt, "Begin!") && strings.Count(prompt, "\nObservation:") > 1:
		reply = " I now know the final answer\nFinal Answer: north leads with 5 units."
	case strings.Contains(prompt, "Begin!"):
		reply = " Sum units per region.\nAction: sql_query\nAction Input: SELECT region, SUM(units) AS total FROM df GROUP BY region ORDER BY total DESC"
	default:
		reply = `Here you go: ["Which region sells most?", 'How many units in total?']`
	}
	return &ai.GenerateResponse{
		Choices: []ai.Choice{{Message: ai.Message{Role: ai.RoleAssistant, Content: reply}}},
		Usage:   ai.Usage{PromptTokens: 100, CompletionTokens: 10, TotalTokens: 110},
	}, nil
}

func useFakeRuntime(t *testing.T) *fakeRuntime {
	t.Helper()
	fake := &fakeRuntime{}
	old := newRuntime
	newRuntime = func(*cfgpkg.Global, string) (ai.Runtime, string, error) {
		return fake, ai.ProviderGemini, nil
	}
	t.Cleanup(func() { newRuntime = old })
	return fake
}

func useTempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(home)
	return home
}

// resetFlags clears values that persist between Execute calls.
func resetFlags() {
	loadFiles, loadDelimiter, loadSourceColumn, loadSuggest, loadForce = nil, "", "", true, false
	askInteractive, askExport, askWithAnswer, askShowSteps, askJSON, askPick, askMaxRows = false, "", false, false, false, 0, 50
	suggestCount = 0
	filesJSON = false
	flagProvider = ""
	profOutputPath, profGroupBy, profCorr = "", nil, false
	if fl := rootCmd.PersistentFlags().Lookup("provider"); fl != nil {
		fl.Changed = false
	}
	for _, c := range rootCmd.Commands() {
		for _, name := range []string{"files", "max-rows", "pick", "json"} {
			if fl := c.Flags().Lookup(name); fl != nil {
				fl.Changed = false
			}
		}
	}
}

// runCmd executes the root command with args and returns its stdout.
func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCmd(t, "", args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func writeArchive(t *testing.T, dir string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range []struct{ name, body string }{
		{"b.csv", "region;units\nnorth;2\n"},
		{"a.csv", "region,units\nnorth,3\nsouth,4\n"},
		{"notes.txt", "not data"},
	} {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(f.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "sales.zip")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCLI_Load_Suggest_Ask(t *testing.T) {
	home := useTempHome(t)
	fake := useFakeRuntime(t)
	zipPath := writeArchive(t, home)

	out := mustRun(t, "load", zipPath)
	if !strings.Contains(out, "✓ Loaded sales.zip: 3 rows × 2 columns from 2 file(s)") {
		t.Fatalf("unexpected load output:\n%s", out)
	}
	if !strings.Contains(out, "1. Which region sells most?") || !strings.Contains(out, "2. How many units in total?") {
		t.Fatalf("suggestions missing:\n%s", out)
	}

	// same archive again: extraction and suggestions are reused
	calls := fake.calls
	mustRun(t, "load", zipPath)
	if fake.calls != calls {
		t.Fatalf("reload of unchanged archive should not ask for suggestions again")
	}

	out = mustRun(t, "ask", "--json", "Units per region?")
	var res askResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if res.Output != "north leads with 5 units." {
		t.Fatalf("output = %q", res.Output)
	}
	if res.Table == nil || len(res.Table.Rows) != 2 || res.Table.Rows[0][0] != "north" || res.Table.Rows[0][1] != "5" {
		t.Fatalf("unexpected table %+v", res.Table)
	}
	if res.Usage.TotalTokens != 220 {
		t.Fatalf("usage = %+v", res.Usage)
	}

	exportPath := filepath.Join(home, "out", "answer.csv")
	out = mustRun(t, "ask", "--pick", "1", "--with-answer", "--export", exportPath)
	if !strings.Contains(out, "north leads with 5 units.") || !strings.Contains(out, "✓ Exported 2 rows") {
		t.Fatalf("unexpected ask output:\n%s", out)
	}
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("export missing: %v", err)
	}
	if string(data) != "region,total\nnorth,5\nsouth,4\n" {
		t.Fatalf("export = %q", data)
	}

	s, err := session.Load(filepath.Join(home, ".csvoracle", "work"))
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if len(s.History) != 2 || s.History[1].Question != "Which region sells most?" || !s.History[1].Tabular {
		t.Fatalf("history = %+v", s.History)
	}

	out = mustRun(t, "files")
	if !strings.Contains(out, "[✓] a.csv") || !strings.Contains(out, "[✓] b.csv") {
		t.Fatalf("unexpected files output:\n%s", out)
	}

	out = mustRun(t, "profile")
	if !strings.Contains(out, "[DATASET SUMMARY]") || !strings.Contains(out, "Source: sales.zip") {
		t.Fatalf("unexpected profile output:\n%s", out)
	}
}

func TestCLI_LoadSelectionResetsHistory(t *testing.T) {
	home := useTempHome(t)
	useFakeRuntime(t)
	zipPath := writeArchive(t, home)

	mustRun(t, "load", zipPath, "--suggest=false")
	mustRun(t, "ask", "Units per region?")

	out := mustRun(t, "load", zipPath, "--files", "a.csv", "--source-column", "file", "--suggest=false")
	if !strings.Contains(out, "2 rows × 3 columns from 1 file(s)") {
		t.Fatalf("unexpected load output:\n%s", out)
	}
	s, err := session.Load(filepath.Join(home, ".csvoracle", "work"))
	if err != nil {
		t.Fatal(err)
	}
	if len(s.History) != 0 || len(s.Files) != 1 {
		t.Fatalf("selection change should reset history: %+v", s)
	}

	if _, err := runCmd(t, "", "load", zipPath, "--files", "missing.csv"); err == nil {
		t.Fatalf("expected error for unknown file")
	}
}

func TestCLI_Interactive(t *testing.T) {
	home := useTempHome(t)
	useFakeRuntime(t)
	zipPath := writeArchive(t, home)
	mustRun(t, "load", zipPath)

	out, err := runCmd(t, "1\n\n9\nexit\n", "ask", "-i")
	if err != nil {
		t.Fatalf("interactive ask: %v", err)
	}
	if !strings.Contains(out, "Q: Which region sells most?") {
		t.Fatalf("suggestion not picked:\n%s", out)
	}
	if !strings.Contains(out, "No suggestion #9") {
		t.Fatalf("out of range pick not reported:\n%s", out)
	}
	if !strings.Contains(out, "north") {
		t.Fatalf("answer table missing:\n%s", out)
	}
}

func TestCLI_AskWithoutSession(t *testing.T) {
	useTempHome(t)
	useFakeRuntime(t)
	_, err := runCmd(t, "", "ask", "anything?")
	if !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	useTempHome(t)
	mustRun(t, "config", "set", "gemini_api_key", "AIzaSecretValue")
	mustRun(t, "config", "set", "agent_max_iterations", "7")
	if _, err := runCmd(t, "", "config", "set", "default_provider", "nope"); err == nil {
		t.Fatalf("expected invalid provider error")
	}
	if _, err := runCmd(t, "", "config", "set", "sample_rows", "-1"); err == nil {
		t.Fatalf("expected invalid int error")
	}
	out := mustRun(t, "config", "show")
	if !strings.Contains(out, "gemini_api_key: AIz****lue") {
		t.Fatalf("key should be masked:\n%s", out)
	}
	if !strings.Contains(out, "agent_max_iterations: 7") {
		t.Fatalf("saved value not shown:\n%s", out)
	}
}

func TestCLI_ModelsShow(t *testing.T) {
	useTempHome(t)
	out := mustRun(t, "models", "show", "--provider", "ollama")
	var models []ai.ModelInfo
	if err := json.Unmarshal([]byte(out), &models); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(models) == 0 {
		t.Fatalf("expected ollama models")
	}
	for _, m := range models {
		if m.Provider != ai.ProviderOllama {
			t.Fatalf("unexpected provider in %+v", m)
		}
	}
}
