package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/csvoracle-cli/internal/config"
	"github.com/KaramelBytes/csvoracle-cli/internal/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set CSV Oracle configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if cfg == nil {
			fmt.Fprintln(out, "No config loaded")
			return nil
		}
		fmt.Fprintf(out, "default_provider: %s\n", cfg.DefaultProvider)
		fmt.Fprintf(out, "api_key: %s\n", mask(cfg.APIKey))
		fmt.Fprintf(out, "gemini_api_key: %s\n", mask(cfg.GeminiAPIKey))
		fmt.Fprintf(out, "suggestion_model: %s\n", cfg.SuggestionModel)
		fmt.Fprintf(out, "suggestion_temperature: %.3f\n", cfg.SuggestionTemperature)
		fmt.Fprintf(out, "suggestion_count: %d\n", cfg.SuggestionCount)
		if cfg.SuggestionPrompt != "" {
			fmt.Fprintln(out, "suggestion_prompt_template: (custom)")
		}
		fmt.Fprintf(out, "sample_rows: %d\n", cfg.SampleRows)
		fmt.Fprintf(out, "agent_model: %s\n", cfg.AgentModel)
		fmt.Fprintf(out, "agent_temperature: %.3f\n", cfg.AgentTemperature)
		fmt.Fprintf(out, "agent_max_iterations: %d\n", cfg.AgentMaxIterations)
		fmt.Fprintf(out, "max_observation_rows: %d\n", cfg.MaxObservationRows)
		fmt.Fprintf(out, "work_dir: %s\n", cfg.WorkDir)
		fmt.Fprintf(out, "http_timeout_sec: %d\n", cfg.HTTPTimeoutSec)
		fmt.Fprintf(out, "retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Fprintf(out, "ollama_host: %s\n", cfg.OllamaHost)
		fmt.Fprintf(out, "log_level: %s\n", cfg.LogLevel)
		fmt.Fprintf(out, "log_format: %s\n", cfg.LogFormat)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureConfig(); err != nil {
			return err
		}
		if err := setConfigValue(cfg, args[0], args[1]); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Saved config")
		return nil
	},
}

func setConfigValue(c *cfgpkg.Global, key, val string) error {
	switch key {
	case "api_key":
		c.APIKey = val
	case "gemini_api_key":
		c.GeminiAPIKey = val
	case "default_provider":
		p := normalizeProvider(val)
		if !isProvider(p) {
			return fmt.Errorf("invalid default_provider: %s (use gemini, openrouter or ollama)", val)
		}
		c.DefaultProvider = p
	case "suggestion_model":
		c.SuggestionModel = val
	case "agent_model":
		c.AgentModel = val
	case "suggestion_prompt_template":
		c.SuggestionPrompt = val
	case "work_dir":
		c.WorkDir = val
	case "ollama_host":
		c.OllamaHost = val
	case "log_format":
		if val != "console" && val != "json" {
			return fmt.Errorf("invalid log_format: %s (use console or json)", val)
		}
		c.LogFormat = val
	case "log_level":
		if logging.ParseLevel(val).String() != val {
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
		c.LogLevel = val
	case "suggestion_temperature", "agent_temperature":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 || f > 2 {
			return fmt.Errorf("invalid float for %s: %v (want 0..2)", key, val)
		}
		if key == "agent_temperature" {
			c.AgentTemperature = f
		} else {
			c.SuggestionTemperature = f
		}
	case "suggestion_count", "sample_rows", "agent_max_iterations", "max_observation_rows",
		"http_timeout_sec", "retry_max_attempts", "ollama_timeout_sec":
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid positive int for %s: %v", key, val)
		}
		switch key {
		case "suggestion_count":
			c.SuggestionCount = i
		case "sample_rows":
			c.SampleRows = i
		case "agent_max_iterations":
			c.AgentMaxIterations = i
		case "max_observation_rows":
			c.MaxObservationRows = i
		case "http_timeout_sec":
			c.HTTPTimeoutSec = i
		case "retry_max_attempts":
			c.RetryMaxAttempts = i
		case "ollama_timeout_sec":
			c.OllamaTimeoutSec = i
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
