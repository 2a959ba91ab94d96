package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"taskboard/internal/domain"
)

// Config models taskboard.yml. Each concern is its own typed field with an
// explicit default; there is no free-form metadata bag.
type Config struct {
	Project struct {
		Methodology string `yaml:"methodology"`
	} `yaml:"project"`
	Assistant AssistantConfig `yaml:"assistant"`
}

// AssistantConfig controls the natural-language assistant. The API key itself
// never lives in the file, only the name of the environment variable holding it.
type AssistantConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	APIKeyEnv     string  `yaml:"api_key_env"`
	HistoryWindow int     `yaml:"history_window"`
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run tb init or create it by hand", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.Methodology != "" && !domain.Methodology(c.Project.Methodology).Valid() {
		return fmt.Errorf("config.project.methodology %q is not one of kanban, scrum, agile, waterfall, lean", c.Project.Methodology)
	}
	if c.Assistant.Enabled {
		if c.Assistant.Model == "" {
			return fmt.Errorf("config.assistant.model is required when the assistant is enabled")
		}
		if c.Assistant.APIKeyEnv == "" {
			return fmt.Errorf("config.assistant.api_key_env is required when the assistant is enabled")
		}
	}
	if c.Assistant.Temperature < 0 || c.Assistant.Temperature > 2 {
		return fmt.Errorf("config.assistant.temperature must be within [0, 2]")
	}
	if c.Assistant.HistoryWindow < 0 {
		return fmt.Errorf("config.assistant.history_window must not be negative")
	}
	return nil
}

// Methodology returns the configured default methodology for new projects.
func (c *Config) Methodology() domain.Methodology {
	m := domain.Methodology(c.Project.Methodology)
	if !m.Valid() {
		return domain.MethodologyKanban
	}
	return m
}

// APIKey resolves the assistant API key from the configured environment variable.
func (c *Config) APIKey() string {
	if c.Assistant.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Assistant.APIKeyEnv)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskboard.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns the default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `project:
  methodology: kanban

assistant:
  enabled: false
  model: gpt-4o-mini
  temperature: 0.2
  api_key_env: OPENAI_API_KEY
  history_window: 15
`
