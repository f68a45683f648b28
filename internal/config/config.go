package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/jeanpaul/fleet/internal/engine"
)

type Config struct {
	DefaultProvider  string                    `yaml:"default_provider" mapstructure:"default_provider"`
	DefaultModel     string                    `yaml:"default_model" mapstructure:"default_model"`
	ReasoningEffort  string                    `yaml:"reasoning_effort" mapstructure:"reasoning_effort"`
	ReasoningSummary string                    `yaml:"reasoning_summary" mapstructure:"reasoning_summary"`
	Providers        map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
	Tools            ToolsConfig               `yaml:"tools" mapstructure:"tools"`
	SubAgents        SubAgentsConfig           `yaml:"subagents" mapstructure:"subagents"`
	Templates        TemplatesConfig           `yaml:"templates" mapstructure:"templates"`
	Skills           SkillsConfig              `yaml:"skills" mapstructure:"skills"`
	History          HistoryConfig             `yaml:"history" mapstructure:"history"`
	Log              LogConfig                 `yaml:"log" mapstructure:"log"`
	MaxTurns         int                       `yaml:"max_turns" mapstructure:"max_turns"`
}

// ProviderConfig points at an OpenAI-compatible endpoint. An empty BaseURL
// means api.openai.com.
type ProviderConfig struct {
	Type    string `yaml:"type" mapstructure:"type"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
}

type ToolsConfig struct {
	DisallowedCommands []string `yaml:"disallowed_commands" mapstructure:"disallowed_commands"`
}

type SubAgentsConfig struct {
	// MaxConcurrent caps running sub-agents; 0 means unlimited.
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

type TemplatesConfig struct {
	AgentsDir string   `yaml:"agents_dir" mapstructure:"agents_dir"`
	Globs     []string `yaml:"globs" mapstructure:"globs"`
}

type SkillsConfig struct {
	Dirs []string `yaml:"dirs" mapstructure:"dirs"`
}

type HistoryConfig struct {
	// Path of the run archive; empty disables it.
	Path string `yaml:"path" mapstructure:"path"`
}

type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"`
}

var envVarRe = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)

func expandEnv(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "$")
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

func DefaultConfig() *Config {
	return &Config{
		DefaultProvider:  "ollama",
		DefaultModel:     "qwen2.5-coder:7b",
		ReasoningSummary: string(engine.SummaryAuto),
		MaxTurns:         50,
		Providers: map[string]ProviderConfig{
			"ollama": {Type: "openai", BaseURL: "http://localhost:11434/v1"},
			"vllm":   {Type: "openai", BaseURL: "http://localhost:8000/v1"},
			"openai": {Type: "openai", APIKey: "$OPENAI_API_KEY"},
		},
		Templates: TemplatesConfig{AgentsDir: filepath.Join(configDir(), "agents")},
		History:   HistoryConfig{Path: filepath.Join(dataDir(), "history.db")},
		Log:       LogConfig{Level: "info"},
	}
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "fleet")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "fleet")
}

func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "fleet")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "fleet")
}

// Load reads config.yaml, FLEET_ environment variables and any flags the
// caller bound to v. A non-empty file replaces the search path.
func Load(v *viper.Viper, file string) (*Config, error) {
	cfg := DefaultConfig()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(configDir())
	}

	v.SetEnvPrefix("FLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about.
	for key, val := range map[string]any{
		"default_provider":         cfg.DefaultProvider,
		"default_model":            cfg.DefaultModel,
		"reasoning_effort":         cfg.ReasoningEffort,
		"reasoning_summary":        cfg.ReasoningSummary,
		"max_turns":                cfg.MaxTurns,
		"subagents.max_concurrent": cfg.SubAgents.MaxConcurrent,
		"templates.agents_dir":     cfg.Templates.AgentsDir,
		"history.path":             cfg.History.Path,
		"log.level":                cfg.Log.Level,
		"log.file":                 cfg.Log.File,
	} {
		v.SetDefault(key, val)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	for name, p := range cfg.Providers {
		p.APIKey = expandEnv(p.APIKey)
		p.BaseURL = expandEnv(p.BaseURL)
		cfg.Providers[name] = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Provider returns the default provider's settings.
func (c *Config) Provider() ProviderConfig {
	return c.Providers[c.DefaultProvider]
}

// ModelDefaults are the turn settings used when a template has no override.
func (c *Config) ModelDefaults() engine.ModelDefaults {
	return engine.ModelDefaults{
		Model:   c.DefaultModel,
		Effort:  engine.ReasoningEffort(c.ReasoningEffort),
		Summary: engine.ReasoningSummary(c.ReasoningSummary),
	}
}

// Validate checks the configuration for errors and fills in defaults.
func (c *Config) Validate() error {
	if c.DefaultProvider == "" {
		return fmt.Errorf("config: default_provider is required")
	}
	if _, ok := c.Providers[c.DefaultProvider]; !ok {
		return fmt.Errorf("config: default_provider %q not found in providers", c.DefaultProvider)
	}
	for name, p := range c.Providers {
		if p.Type == "" {
			p.Type = "openai"
			c.Providers[name] = p
		}
		if p.Type != "openai" {
			return fmt.Errorf("config: provider %q has invalid type %q (must be openai)", name, p.Type)
		}
	}
	if c.DefaultModel == "" {
		return fmt.Errorf("config: default_model is required")
	}
	switch engine.ReasoningEffort(c.ReasoningEffort) {
	case engine.EffortNone, engine.EffortLow, engine.EffortMedium, engine.EffortHigh:
	default:
		return fmt.Errorf("config: reasoning_effort %q must be low, medium or high", c.ReasoningEffort)
	}
	switch engine.ReasoningSummary(c.ReasoningSummary) {
	case "":
		c.ReasoningSummary = string(engine.SummaryAuto)
	case engine.SummaryAuto, engine.SummaryConcise, engine.SummaryDetailed, engine.SummaryNone:
	default:
		return fmt.Errorf("config: reasoning_summary %q must be auto, concise, detailed or none", c.ReasoningSummary)
	}
	if c.SubAgents.MaxConcurrent < 0 {
		return fmt.Errorf("config: subagents.max_concurrent must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "":
		c.Log.Level = "info"
	case "debug", "info", "warn", "error":
		c.Log.Level = strings.ToLower(c.Log.Level)
	default:
		return fmt.Errorf("config: log.level %q must be debug, info, warn or error", c.Log.Level)
	}
	if c.MaxTurns < 1 {
		c.MaxTurns = 50
	}
	return nil
}
