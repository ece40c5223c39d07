package cmd

import (
	"errors"
	"strings"
	"testing"

	"github.com/KaramelBytes/csvoracle-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/csvoracle-cli/internal/config"
)

func TestBuildRuntimeProviderPrecedence(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	cfg := &cfgpkg.Global{DefaultProvider: "ollama", OllamaHost: "http://127.0.0.1:11434"}

	client, provider, err := buildRuntime(cfg, "")
	if err != nil {
		t.Fatalf("buildRuntime error: %v", err)
	}
	if provider != ai.ProviderOllama {
		t.Fatalf("expected ollama provider, got %q", provider)
	}
	if _, ok := client.(*ai.OllamaClient); !ok {
		t.Fatalf("unexpected runtime %T", client)
	}

	_, provider, err = buildRuntime(cfg, "google")
	if err != nil || provider != ai.ProviderGemini {
		t.Fatalf("flag should win: %q, %v", provider, err)
	}

	_, provider, err = buildRuntime(nil, "")
	if err != nil || provider != ai.ProviderGemini {
		t.Fatalf("default provider should be gemini: %q, %v", provider, err)
	}

	if _, _, err := buildRuntime(nil, "bogus"); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestModelFor(t *testing.T) {
	if got := modelFor("gemini-2.0-flash", ai.ProviderGemini); got != "gemini-2.0-flash" {
		t.Fatalf("configured model should be kept, got %q", got)
	}
	if got := modelFor("gemini-1.5-flash-latest", ai.ProviderOllama); got != "llama3.1:8b" {
		t.Fatalf("foreign model should fall back to provider default, got %q", got)
	}
	if got := modelFor("my-custom-model", ai.ProviderOllama); got != "my-custom-model" {
		t.Fatalf("uncatalogued model should be kept, got %q", got)
	}
	if got := modelFor("", ai.ProviderGemini); got == "" {
		t.Fatal("expected a default model")
	}
}

func TestParseDelimiter(t *testing.T) {
	cases := map[string]rune{"": 0, "auto": 0, ",": ',', ";": ';', "tab": '\t', "TAB": '\t', "pipe": '|'}
	for in, want := range cases {
		got, err := parseDelimiter(in)
		if err != nil || got != want {
			t.Fatalf("parseDelimiter(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := parseDelimiter("::"); err == nil {
		t.Fatal("expected error for unsupported delimiter")
	}
}

func TestExplainRuntimeError(t *testing.T) {
	err := explainRuntimeError(ai.ErrMissingAPIKey, ai.ProviderGemini, "m")
	if !errors.Is(err, ai.ErrMissingAPIKey) || !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Fatalf("unexpected: %v", err)
	}
	nf := &ai.ModelNotFoundError{APIError: &ai.APIError{StatusCode: 404}}
	err = explainRuntimeError(nf, ai.ProviderOllama, "qwen2.5:7b")
	if !strings.Contains(err.Error(), "ollama pull qwen2.5:7b") {
		t.Fatalf("unexpected: %v", err)
	}
	var target *ai.ModelNotFoundError
	if !errors.As(err, &target) {
		t.Fatal("typed error should stay inspectable")
	}
	plain := errors.New("boom")
	if explainRuntimeError(plain, ai.ProviderGemini, "m") != plain {
		t.Fatal("unknown errors should pass through")
	}
}
