package models

import "regexp"

// ModelProfile is one layer of per-provider tuning applied to every LLM call.
// Nil pointer fields mean "inherit from parent"; non-nil means "override".
//
// Resolution order: default → provider → model (regexp match).
type ModelProfile struct {
	// Provider matches ModelConfig.Provider. Empty means the default layer.
	Provider string

	// ModelPattern is a regexp matched against the model name.
	// Empty means the layer applies to every model of the provider.
	ModelPattern string

	// PromptSuffix is appended to the system prompt. Additive across layers.
	PromptSuffix string

	// Temperature overrides the configured temperature. nil = inherit.
	Temperature *float64

	// MaxTokens caps the configured generation limit. nil = inherit.
	MaxTokens *int
}

// ResolvedProfile is the merged result of every matching layer.
type ResolvedProfile struct {
	PromptSuffix string
	Temperature  *float64
	MaxTokens    *int
}

// Apply returns cfg with the profile's overrides applied.
func (p ResolvedProfile) Apply(cfg ModelConfig) ModelConfig {
	if p.Temperature != nil {
		cfg.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil && (cfg.MaxTokens <= 0 || cfg.MaxTokens > *p.MaxTokens) {
		cfg.MaxTokens = *p.MaxTokens
	}
	return cfg
}

// SystemPrompt appends the profile suffix to a stage system prompt.
func (p ResolvedProfile) SystemPrompt(base string) string {
	if p.PromptSuffix == "" {
		return base
	}
	if base == "" {
		return p.PromptSuffix
	}
	return base + "\n\n" + p.PromptSuffix
}

// ProfileRegistry holds ordered ModelProfile entries and resolves them
// against a provider/model pair.
type ProfileRegistry struct {
	profiles []ModelProfile
}

// NewDefaultRegistry returns a registry populated with the built-in profiles.
func NewDefaultRegistry() *ProfileRegistry {
	return &ProfileRegistry{
		profiles: builtinProfiles(),
	}
}

// Resolve walks the registry profiles, matches by provider then by model
// regexp, merges layers, and returns the resolved profile.
func (r *ProfileRegistry) Resolve(provider, model string) ResolvedProfile {
	merged := ModelProfile{}
	for _, p := range r.profiles {
		if !profileMatches(p, provider, model) {
			continue
		}
		merged = mergeProfiles(merged, p)
	}
	return ResolvedProfile{
		PromptSuffix: merged.PromptSuffix,
		Temperature:  merged.Temperature,
		MaxTokens:    merged.MaxTokens,
	}
}

func profileMatches(p ModelProfile, provider, model string) bool {
	if p.Provider == "" && p.ModelPattern == "" {
		return true
	}
	if p.Provider != "" && p.Provider != provider {
		return false
	}
	if p.ModelPattern == "" {
		return true
	}
	matched, err := regexp.MatchString(p.ModelPattern, model)
	if err != nil {
		return false
	}
	return matched
}

// mergeProfiles merges overlay on top of base. PromptSuffix is concatenated;
// pointer fields are replaced when the overlay sets them.
func mergeProfiles(base, overlay ModelProfile) ModelProfile {
	result := base
	if overlay.PromptSuffix != "" {
		if result.PromptSuffix != "" {
			result.PromptSuffix = result.PromptSuffix + "\n\n" + overlay.PromptSuffix
		} else {
			result.PromptSuffix = overlay.PromptSuffix
		}
	}
	if overlay.Temperature != nil {
		result.Temperature = overlay.Temperature
	}
	if overlay.MaxTokens != nil {
		result.MaxTokens = overlay.MaxTokens
	}
	return result
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

// builtinProfiles returns the built-in layers in resolution order.
func builtinProfiles() []ModelProfile {
	return []ModelProfile{
		{},
		{
			Provider:     ProviderAnthropic,
			PromptSuffix: "When using tools, prefer sequential calls when results depend on each other. Use parallel tool calls only for independent operations.",
		},
		// Reasoning models only accept the default temperature.
		{
			Provider:     ProviderOpenAI,
			ModelPattern: `^(o1|o3|o4|gpt-5)`,
			Temperature:  floatPtr(1),
		},
		{
			Provider:     ProviderLMStudio,
			PromptSuffix: "Tool arguments must be a single valid JSON object.",
			MaxTokens:    intPtr(4096),
		},
		{
			Provider:     ProviderOllama,
			PromptSuffix: "Tool arguments must be a single valid JSON object.",
			MaxTokens:    intPtr(4096),
		},
	}
}
