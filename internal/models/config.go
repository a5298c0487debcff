package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderLMStudio  = "lmstudio"
	ProviderOllama    = "ollama"
)

// ModelConfig configures the LLM used for one call.
type ModelConfig struct {
	Provider    string  `json:"provider"`           // "openai", "anthropic", "lmstudio", "ollama"
	Model       string  `json:"model"`              // e.g., "gpt-4o", "claude-sonnet-4-20250514"
	BaseURL     string  `json:"base_url,omitempty"` // set for local OpenAI-compatible servers
	Temperature float64 `json:"temperature"`        // 0.0 to 2.0
	MaxTokens   int     `json:"max_tokens"`         // Max tokens to generate
}

// String renders the config back into model-string form.
func (c ModelConfig) String() string {
	if c.BaseURL != "" {
		hostPort := strings.TrimSuffix(strings.TrimPrefix(c.BaseURL, "http://"), "/v1")
		return fmt.Sprintf("%s://%s/%s", c.Provider, hostPort, c.Model)
	}
	return c.Provider + ":" + c.Model
}

// ParseModelString parses "provider:model" or "provider://host:port/model".
//
// Local providers (lmstudio, ollama) take the URL form and are served through
// their OpenAI-compatible endpoint at http://host:port/v1. The model name may
// itself contain "/" or ":" (e.g. "qwen/qwen3-4b", "gemma3:12b").
func ParseModelString(s string) (ModelConfig, error) {
	s = strings.TrimSpace(s)
	if provider, info, ok := strings.Cut(s, "://"); ok {
		return parseLocalModel(provider, info)
	}
	provider, model, ok := strings.Cut(s, ":")
	if !ok || provider == "" || model == "" {
		return ModelConfig{}, fmt.Errorf("invalid model string %q: expected 'provider:model' or 'provider://host:port/model'", s)
	}
	switch provider {
	case ProviderOpenAI, ProviderAnthropic:
	case ProviderLMStudio, ProviderOllama:
		return ModelConfig{}, fmt.Errorf("invalid model string %q: %s requires 'provider://host:port/model'", s, provider)
	default:
		return ModelConfig{}, fmt.Errorf("unsupported provider %q in model string %q", provider, s)
	}
	return ModelConfig{
		Provider:  provider,
		Model:     model,
		MaxTokens: DefaultMaxTokens,
	}, nil
}

func parseLocalModel(provider, info string) (ModelConfig, error) {
	if provider != ProviderLMStudio && provider != ProviderOllama {
		return ModelConfig{}, fmt.Errorf("unsupported local provider %q", provider)
	}
	hostPort, model, ok := strings.Cut(info, "/")
	if !ok || model == "" {
		return ModelConfig{}, fmt.Errorf("local model info must include model name: %s", info)
	}
	host, port, ok := strings.Cut(hostPort, ":")
	if !ok || host == "" {
		return ModelConfig{}, fmt.Errorf("local model info must include port: %s", info)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return ModelConfig{}, fmt.Errorf("invalid port number: %s", port)
	}
	return ModelConfig{
		Provider:  provider,
		Model:     model,
		BaseURL:   fmt.Sprintf("http://%s/v1", hostPort),
		MaxTokens: DefaultMaxTokens,
	}, nil
}

// DefaultMaxTokens is the generation limit applied when a config omits one.
const DefaultMaxTokens = 8192

// StageModels selects the model for each stage of a research run.
type StageModels struct {
	Scope      ModelConfig `json:"scope"`
	Supervisor ModelConfig `json:"supervisor"`
	Research   ModelConfig `json:"research"`
	Compress   ModelConfig `json:"compress"`
	Report     ModelConfig `json:"report"`
}

// ResearchConfig carries every tunable of a research run. It travels inside
// the workflow input so a run is reproducible from its history alone.
type ResearchConfig struct {
	Models StageModels `json:"models"`

	// MaxConcurrentResearchUnits bounds the number of threads one supervisor
	// decision may dispatch.
	MaxConcurrentResearchUnits int `json:"max_concurrent_research_units"`
	// MaxResearcherIterations bounds the model calls inside one thread.
	MaxResearcherIterations int `json:"max_researcher_iterations"`
	// MaxSupervisorIterations bounds think-only supervisor turns.
	MaxSupervisorIterations int `json:"max_supervisor_iterations"`
	// ThreadTimeout is the execution timeout of each research thread.
	ThreadTimeout time.Duration `json:"thread_timeout"`
}

// Default research limits.
const (
	DefaultMaxConcurrentResearchUnits = 3
	DefaultMaxResearcherIterations    = 6
	DefaultMaxSupervisorIterations    = 4
	DefaultThreadTimeout              = 15 * time.Minute
)

// DefaultResearchConfig returns the configuration used when nothing is set.
func DefaultResearchConfig() ResearchConfig {
	openai := ModelConfig{Provider: ProviderOpenAI, Model: "gpt-4o", MaxTokens: DefaultMaxTokens}
	return ResearchConfig{
		Models: StageModels{
			Scope:      openai,
			Supervisor: openai,
			Research:   openai,
			Compress:   openai,
			Report:     openai,
		},
		MaxConcurrentResearchUnits: DefaultMaxConcurrentResearchUnits,
		MaxResearcherIterations:    DefaultMaxResearcherIterations,
		MaxSupervisorIterations:    DefaultMaxSupervisorIterations,
		ThreadTimeout:              DefaultThreadTimeout,
	}
}

// WithDefaults fills zero-valued fields from DefaultResearchConfig.
func (c ResearchConfig) WithDefaults() ResearchConfig {
	d := DefaultResearchConfig()
	fill := func(m *ModelConfig, def ModelConfig) {
		if m.Provider == "" || m.Model == "" {
			*m = def
		}
		if m.MaxTokens <= 0 {
			m.MaxTokens = DefaultMaxTokens
		}
	}
	fill(&c.Models.Scope, d.Models.Scope)
	fill(&c.Models.Supervisor, d.Models.Supervisor)
	fill(&c.Models.Research, d.Models.Research)
	fill(&c.Models.Compress, d.Models.Compress)
	fill(&c.Models.Report, d.Models.Report)
	if c.MaxConcurrentResearchUnits <= 0 {
		c.MaxConcurrentResearchUnits = d.MaxConcurrentResearchUnits
	}
	if c.MaxResearcherIterations <= 0 {
		c.MaxResearcherIterations = d.MaxResearcherIterations
	}
	if c.MaxSupervisorIterations <= 0 {
		c.MaxSupervisorIterations = d.MaxSupervisorIterations
	}
	if c.ThreadTimeout <= 0 {
		c.ThreadTimeout = d.ThreadTimeout
	}
	return c
}
