package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultSuggestionPrompt is the built-in template for question suggestions.
// {schema_info} and {head_data} are substituted before sending.
const DefaultSuggestionPrompt = `You are a senior data analyst. Based on the schema and the first rows of data below, write {count} relevant, actionable business questions.

Schema:
{schema_info}
Data sample:
{head_data}

Return your answer as a list of strings and nothing else.
Example output: ["What were total sales by category?", "Who are the top 5 customers by purchase amount?", "Is there a correlation between quantity and unit price?"]
`

// Global configuration structure.
type Global struct {
	APIKey          string `mapstructure:"api_key" yaml:"api_key"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key" yaml:"gemini_api_key"`
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`

	SuggestionModel       string  `mapstructure:"suggestion_model" yaml:"suggestion_model"`
	SuggestionTemperature float64 `mapstructure:"suggestion_temperature" yaml:"suggestion_temperature"`
	SuggestionCount       int     `mapstructure:"suggestion_count" yaml:"suggestion_count"`
	SuggestionPrompt      string  `mapstructure:"suggestion_prompt_template" yaml:"suggestion_prompt_template,omitempty"`
	SampleRows            int     `mapstructure:"sample_rows" yaml:"sample_rows"`

	AgentModel         string  `mapstructure:"agent_model" yaml:"agent_model"`
	AgentTemperature   float64 `mapstructure:"agent_temperature" yaml:"agent_temperature"`
	AgentMaxIterations int     `mapstructure:"agent_max_iterations" yaml:"agent_max_iterations"`
	MaxObservationRows int     `mapstructure:"max_observation_rows" yaml:"max_observation_rows"`

	WorkDir string `mapstructure:"work_dir" yaml:"work_dir"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Dir returns the directory holding config.yaml and the default work dir.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".csvoracle"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.csvoracle/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadDotEnv loads .env from the working directory when present.
// Variables already set in the environment are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load dotenv: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("CSVORACLE")
	v.AutomaticEnv()

	v.SetDefault("default_provider", "gemini")
	v.SetDefault("suggestion_model", "gemini-1.5-flash-latest")
	v.SetDefault("suggestion_temperature", 0.5)
	v.SetDefault("suggestion_count", 3)
	v.SetDefault("suggestion_prompt_template", "")
	v.SetDefault("sample_rows", 5)
	v.SetDefault("agent_model", "gemini-1.5-flash-latest")
	v.SetDefault("agent_temperature", 0.0)
	v.SetDefault("agent_max_iterations", 15)
	v.SetDefault("max_observation_rows", 50)
	v.SetDefault("work_dir", "")
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 120)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	// Bind keys that have no default so AutomaticEnv can see them on Unmarshal.
	_ = v.BindEnv("api_key")
	_ = v.BindEnv("gemini_api_key")

	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// an explicit --config must exist; the default one is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(dir, "work")
	}
	return &c, nil
}

// SuggestionTemplate returns the configured template or the built-in one.
func (c *Global) SuggestionTemplate() string {
	if c != nil && c.SuggestionPrompt != "" {
		return c.SuggestionPrompt
	}
	return DefaultSuggestionPrompt
}
