// Package config loads deep-research configuration from the user config
// file, a project override and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mfateev/temporal-deep-research/internal/llm"
	"github.com/mfateev/temporal-deep-research/internal/mcp"
	"github.com/mfateev/temporal-deep-research/internal/models"
)

// Names of the configuration files and the environment prefix.
const (
	appName           = "deep-research"
	ProjectConfigName = ".deep-research.yaml"
	EnvPrefix         = "DEEP_RESEARCH"
	// PersonalGuidanceFile holds research preferences that apply to every run.
	PersonalGuidanceFile = "RESEARCH.md"
)

// DefaultTaskQueue is the task queue shared by the worker and the client.
const DefaultTaskQueue = "temporal-deep-research"

// Config holds all configuration of the worker and the client.
type Config struct {
	Temporal   TemporalConfig                 `mapstructure:"temporal"`
	OpenAI     APIKeyConfig                   `mapstructure:"openai"`
	Anthropic  APIKeyConfig                   `mapstructure:"anthropic"`
	Models     ModelsConfig                   `mapstructure:"models"`
	Research   ResearchLimits                 `mapstructure:"research"`
	MCPServers map[string]mcp.McpServerConfig `mapstructure:"mcp_servers"`
	Metrics    MetricsConfig                  `mapstructure:"metrics"`
	Log        LogConfig                      `mapstructure:"log"`

	// UserConfigDir is where the user config and personal guidance live.
	UserConfigDir string `mapstructure:"-"`
}

// TemporalConfig overrides the envconfig-provided client options.
type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// APIKeyConfig holds a provider API key. ${VAR} references are expanded.
type APIKeyConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// ModelsConfig selects the model of each stage, as model strings
// ("openai:gpt-4o", "anthropic:claude-sonnet-4-20250514",
// "lmstudio://localhost:1234/qwen/qwen3-4b").
type ModelsConfig struct {
	Scope      string `mapstructure:"scope"`
	Supervisor string `mapstructure:"supervisor"`
	Research   string `mapstructure:"research"`
	Compress   string `mapstructure:"compress"`
	Report     string `mapstructure:"report"`
}

// ResearchLimits bounds a research run.
type ResearchLimits struct {
	MaxConcurrentResearchUnits int           `mapstructure:"max_concurrent_research_units"`
	MaxResearcherIterations    int           `mapstructure:"max_researcher_iterations"`
	MaxSupervisorIterations    int           `mapstructure:"max_supervisor_iterations"`
	ThreadTimeout              time.Duration `mapstructure:"thread_timeout"`
}

// MetricsConfig configures the worker's Prometheus endpoint. An empty
// address disables it.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// LogConfig configures the worker's logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadOptions locates the configuration files. Empty fields use the
// defaults: the XDG config directory and the working directory.
type LoadOptions struct {
	UserConfigDir string
	WorkDir       string
}

// Load loads configuration with the default locations.
// Precedence (highest to lowest):
// 1. Environment variables (DEEP_RESEARCH_*, OPENAI_API_KEY, ANTHROPIC_API_KEY)
// 2. Project config (.deep-research.yaml in the working directory or a parent)
// 3. User config (~/.config/deep-research/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	return LoadWith(LoadOptions{})
}

// LoadWith loads configuration from the given locations.
func LoadWith(opts LoadOptions) (*Config, error) {
	if opts.UserConfigDir == "" {
		opts.UserConfigDir = UserConfigDir()
	}
	if opts.WorkDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		opts.WorkDir = cwd
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(opts.UserConfigDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(opts.WorkDir); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("anthropic.api_key", EnvPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.OpenAI.APIKey = os.ExpandEnv(cfg.OpenAI.APIKey)
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.UserConfigDir = opts.UserConfigDir
	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := models.DefaultResearchConfig()

	v.SetDefault("temporal.host_port", "")
	v.SetDefault("temporal.namespace", "")
	v.SetDefault("temporal.task_queue", DefaultTaskQueue)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("anthropic.api_key", "")

	v.SetDefault("models.scope", d.Models.Scope.String())
	v.SetDefault("models.supervisor", d.Models.Supervisor.String())
	v.SetDefault("models.research", d.Models.Research.String())
	v.SetDefault("models.compress", d.Models.Compress.String())
	v.SetDefault("models.report", d.Models.Report.String())

	v.SetDefault("research.max_concurrent_research_units", d.MaxConcurrentResearchUnits)
	v.SetDefault("research.max_researcher_iterations", d.MaxResearcherIterations)
	v.SetDefault("research.max_supervisor_iterations", d.MaxSupervisorIterations)
	v.SetDefault("research.thread_timeout", d.ThreadTimeout.String())

	v.SetDefault("metrics.address", "")
	v.SetDefault("log.level", "info")
}

// ResearchConfig builds the per-run configuration carried in the workflow
// input.
func (c *Config) ResearchConfig() (models.ResearchConfig, error) {
	var rc models.ResearchConfig
	stages := []struct {
		key    string
		value  string
		target *models.ModelConfig
	}{
		{"models.scope", c.Models.Scope, &rc.Models.Scope},
		{"models.supervisor", c.Models.Supervisor, &rc.Models.Supervisor},
		{"models.research", c.Models.Research, &rc.Models.Research},
		{"models.compress", c.Models.Compress, &rc.Models.Compress},
		{"models.report", c.Models.Report, &rc.Models.Report},
	}
	for _, stage := range stages {
		if strings.TrimSpace(stage.value) == "" {
			continue
		}
		mc, err := models.ParseModelString(stage.value)
		if err != nil {
			return models.ResearchConfig{}, fmt.Errorf("%s: %w", stage.key, err)
		}
		*stage.target = mc
	}

	rc.MaxConcurrentResearchUnits = c.Research.MaxConcurrentResearchUnits
	rc.MaxResearcherIterations = c.Research.MaxResearcherIterations
	rc.MaxSupervisorIterations = c.Research.MaxSupervisorIterations
	rc.ThreadTimeout = c.Research.ThreadTimeout
	if rc.MaxConcurrentResearchUnits < 0 || rc.MaxResearcherIterations < 0 || rc.MaxSupervisorIterations < 0 {
		return models.ResearchConfig{}, fmt.Errorf("research limits must not be negative")
	}
	return rc.WithDefaults(), nil
}

// Credentials returns the provider API keys.
func (c *Config) Credentials() llm.Credentials {
	return llm.Credentials{
		OpenAIAPIKey:    c.OpenAI.APIKey,
		AnthropicAPIKey: c.Anthropic.APIKey,
	}
}

// LocalModels returns the configured stage models served by local
// OpenAI-compatible endpoints. Unparseable strings are skipped.
func (c *Config) LocalModels() []models.ModelConfig {
	var local []models.ModelConfig
	for _, s := range []string{c.Models.Scope, c.Models.Supervisor, c.Models.Research, c.Models.Compress, c.Models.Report} {
		mc, err := models.ParseModelString(s)
		if err == nil && mc.BaseURL != "" {
			local = append(local, mc)
		}
	}
	return local
}

// Servers returns the configured MCP servers, or the default filesystem
// server rooted at dir when none is configured.
func (c *Config) Servers(dir string) (map[string]mcp.McpServerConfig, error) {
	if len(c.MCPServers) == 0 {
		return mcp.DefaultServers(dir), nil
	}
	for name, server := range c.MCPServers {
		if err := server.Validate(); err != nil {
			return nil, fmt.Errorf("mcp_servers.%s: %w", name, err)
		}
	}
	return c.MCPServers, nil
}

// TaskQueue returns the configured task queue.
func (c *Config) TaskQueue() string {
	if c.Temporal.TaskQueue == "" {
		return DefaultTaskQueue
	}
	return c.Temporal.TaskQueue
}

// PersonalGuidancePath is the personal guidance file in the user config
// directory.
func (c *Config) PersonalGuidancePath() string {
	return filepath.Join(c.UserConfigDir, PersonalGuidanceFile)
}

// UserConfigDir returns the XDG config directory for deep-research.
func UserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", appName)
	}
	return filepath.Join(home, ".config", appName)
}

// findProjectConfig searches for .deep-research.yaml in dir and its parents.
func findProjectConfig(dir string) string {
	for {
		configPath := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
