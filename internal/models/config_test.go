package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
)

func TestParseModelString(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		model    string
		baseURL  string
	}{
		{"openai:gpt-4o", "openai", "gpt-4o", ""},
		{"anthropic:claude-sonnet-4-20250514", "anthropic", "claude-sonnet-4-20250514", ""},
		{"lmstudio://localhost:1234/llama-3", "lmstudio", "llama-3", "http://localhost:1234/v1"},
		{"lmstudio://localhost:1234/qwen/qwen3-4b-thinking-2507", "lmstudio", "qwen/qwen3-4b-thinking-2507", "http://localhost:1234/v1"},
		{"ollama://192.168.1.11:11434/gemma3-lc:12b", "ollama", "gemma3-lc:12b", "http://192.168.1.11:11434/v1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cfg, err := ParseModelString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.provider, cfg.Provider)
			assert.Equal(t, tt.model, cfg.Model)
			assert.Equal(t, tt.baseURL, cfg.BaseURL)
			assert.Equal(t, DefaultMaxTokens, cfg.MaxTokens)
			assert.Equal(t, tt.in, cfg.String())
		})
	}
}

func TestParseModelString_Invalid(t *testing.T) {
	for _, in := range []string{
		"gpt-4o",
		"openai:",
		"unknown:model",
		"lmstudio:llama",
		"lmstudio://localhost:1234",
		"lmstudio://localhost/llama",
		"ollama://localhost:port/llama",
		"vllm://localhost:8000/llama",
	} {
		_, err := ParseModelString(in)
		assert.Error(t, err, in)
	}
}

func TestResearchConfig_WithDefaults(t *testing.T) {
	cfg := ResearchConfig{MaxConcurrentResearchUnits: 5}.WithDefaults()

	assert.Equal(t, 5, cfg.MaxConcurrentResearchUnits)
	assert.Equal(t, DefaultMaxResearcherIterations, cfg.MaxResearcherIterations)
	assert.Equal(t, DefaultMaxSupervisorIterations, cfg.MaxSupervisorIterations)
	assert.Equal(t, DefaultThreadTimeout, cfg.ThreadTimeout)
	assert.Equal(t, "openai:gpt-4o", cfg.Models.Report.String())

	custom := ResearchConfig{
		Models:        StageModels{Research: ModelConfig{Provider: "anthropic", Model: "claude"}},
		ThreadTimeout: time.Minute,
	}.WithDefaults()
	assert.Equal(t, "anthropic", custom.Models.Research.Provider)
	assert.Equal(t, DefaultMaxTokens, custom.Models.Research.MaxTokens)
	assert.Equal(t, time.Minute, custom.ThreadTimeout)
}

func TestToolCall_ParseArguments(t *testing.T) {
	args, err := ToolCall{Arguments: `{"path":"/tmp/a.md","n":2}`}.ParseArguments()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a.md", args["path"])

	args, err = ToolCall{Arguments: "  "}.ParseArguments()
	require.NoError(t, err)
	assert.Empty(t, args)

	_, err = ToolCall{ID: "c1", Name: "x", Arguments: "{not json"}.ParseArguments()
	assert.Error(t, err)

	assert.Equal(t, "topic", ToolCall{Arguments: `{"research_topic":" topic "}`}.StringArgument("research_topic"))
	assert.Empty(t, ToolCall{Arguments: `{"research_topic":3}`}.StringArgument("research_topic"))
}

func TestThreadFailure_Note(t *testing.T) {
	f := ThreadFailure{Index: 1, Subtask: "pricing of X", Reason: "timeout"}
	assert.Equal(t, "[research thread 2 failed] pricing of X: timeout", f.Note())
}

func TestWrapActivityError(t *testing.T) {
	assert.Nil(t, WrapActivityError(nil))

	plain := errors.New("boom")
	assert.Same(t, plain, WrapActivityError(plain))

	var appErr *temporal.ApplicationError
	err := WrapActivityError(NewFatalError("bad key"))
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "Fatal", appErr.Type())
	assert.True(t, appErr.NonRetryable())

	err = WrapActivityError(NewAPILimitError("slow down"))
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "APILimit", appErr.Type())
	assert.False(t, appErr.NonRetryable())
}
