package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/csvoracle-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/csvoracle-cli/internal/config"
)

// newRuntime builds the language-model runtime; tests replace it with a fake.
var newRuntime = buildRuntime

// buildRuntime resolves the provider, its credentials and the HTTP/retry
// settings from flags, environment and config.
func buildRuntime(cfg *cfgpkg.Global, providerFlag string) (ai.Runtime, string, error) {
	httpTimeout := 60 * time.Second
	retryMax := 3
	baseDelay := 500 * time.Millisecond
	maxDelay := 4 * time.Second
	if cfg != nil {
		if cfg.HTTPTimeoutSec > 0 {
			httpTimeout = time.Duration(cfg.HTTPTimeoutSec) * time.Second
		}
		if cfg.RetryMaxAttempts > 0 {
			retryMax = cfg.RetryMaxAttempts
		}
		if cfg.RetryBaseDelayMs > 0 {
			baseDelay = time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond
		}
		if cfg.RetryMaxDelayMs > 0 {
			maxDelay = time.Duration(cfg.RetryMaxDelayMs) * time.Millisecond
		}
	}

	providerName := normalizeProvider(providerFlag)
	if providerName == "" && cfg != nil {
		providerName = normalizeProvider(cfg.DefaultProvider)
	}
	if providerName == "" {
		providerName = ai.ProviderGemini
	}

	rc := ai.RuntimeConfig{
		HTTPTimeout: httpTimeout,
		RetryMax:    retryMax,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
	}
	switch providerName {
	case ai.ProviderGemini:
		rc.APIKey = firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
		if rc.APIKey == "" && cfg != nil {
			rc.APIKey = cfg.GeminiAPIKey
		}
	case ai.ProviderOpenRouter:
		rc.APIKey = os.Getenv("OPENROUTER_API_KEY")
		if rc.APIKey == "" && cfg != nil {
			rc.APIKey = cfg.APIKey
		}
	case ai.ProviderOllama:
		host := os.Getenv("CSVORACLE_OLLAMA_HOST")
		if host == "" && cfg != nil && cfg.OllamaHost != "" {
			host = cfg.OllamaHost
		}
		if host == "" {
			host = "http://127.0.0.1:11434"
		}
		rc.Host = host
		if v := os.Getenv("CSVORACLE_OLLAMA_TIMEOUT_SEC"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				rc.HTTPTimeout = time.Duration(n) * time.Second
			}
		}
		if cfg != nil && cfg.OllamaTimeoutSec > 0 {
			rc.HTTPTimeout = time.Duration(cfg.OllamaTimeoutSec) * time.Second
		}
	}

	client, ok := ai.GetRuntime(providerName, rc)
	if !ok {
		return nil, providerName, fmt.Errorf("provider not supported: %s (use %s)", providerName, strings.Join(ai.Providers(), "|"))
	}
	return client, providerName, nil
}

func normalizeProvider(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return ""
	case "gemini", "google":
		return ai.ProviderGemini
	case "openrouter":
		return ai.ProviderOpenRouter
	case "ollama", "local":
		return ai.ProviderOllama
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

// modelFor picks the model for a role, falling back to the provider default
// when the configured model belongs to another provider.
func modelFor(configured, provider string) string {
	if configured != "" {
		if mi, ok := ai.LookupModel(configured); !ok || mi.Provider == provider {
			return configured
		}
	}
	if m, ok := ai.DefaultModel(provider); ok {
		return m
	}
	return configured
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// explainRuntimeError adds a hint for the common provider failures.
func explainRuntimeError(err error, provider, model string) error {
	var (
		authErr *ai.AuthError
		rlErr   *ai.RateLimitError
		nfErr   *ai.ModelNotFoundError
		brErr   *ai.BadRequestError
		qErr    *ai.QuotaExceededError
		sErr    *ai.ServerError
		unreach *ai.UnreachableError
	)
	switch {
	case errors.Is(err, ai.ErrMissingAPIKey):
		if provider == ai.ProviderOpenRouter {
			return fmt.Errorf("no API key: set OPENROUTER_API_KEY or 'csvoracle config set api_key <key>': %w", err)
		}
		return fmt.Errorf("no API key: set GEMINI_API_KEY (or GOOGLE_API_KEY) in the environment or .env, or 'csvoracle config set gemini_api_key <key>': %w", err)
	case errors.As(err, &unreach):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("Ollama not reachable at %s. Ensure Ollama is running and the host is correct (CSVORACLE_OLLAMA_HOST or config 'ollama_host'). Detail: %w", unreach.Host, err)
		}
		return fmt.Errorf("endpoint unreachable. Check your network and provider settings: %w", err)
	case errors.As(err, &authErr):
		return fmt.Errorf("authentication failed: check the %s API key: %w", provider, err)
	case errors.As(err, &rlErr):
		if rlErr.RetryAfter > 0 {
			return fmt.Errorf("rate limited, try again in ~%ds: %w", int(rlErr.RetryAfter.Seconds()), err)
		}
		return fmt.Errorf("rate limited by provider, please retry: %w", err)
	case errors.As(err, &nfErr):
		if provider == ai.ProviderOllama {
			return fmt.Errorf("local model not available (%s). Install it with 'ollama pull %s' or choose another model. %w", model, model, err)
		}
		return fmt.Errorf("model not found (%s). See 'csvoracle models show': %w", model, err)
	case errors.As(err, &brErr):
		return fmt.Errorf("request invalid. Try a smaller dataset sample or another model: %w", err)
	case errors.As(err, &qErr):
		return fmt.Errorf("quota/billing issue. Check your provider account: %w", err)
	case errors.As(err, &sErr):
		return fmt.Errorf("provider appears unavailable (server error). Please retry later: %w", err)
	default:
		return err
	}
}
