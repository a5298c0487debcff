// Package mcp provides the tool gateway: a process-wide client for one or
// more MCP (Model Context Protocol) servers.
package mcp

import (
	"fmt"
	"os"
	"time"
)

// Default timeout for starting an MCP server and listing its tools.
const DefaultStartupTimeout = 30 * time.Second

// Default timeout for individual tool calls.
const DefaultToolTimeout = 60 * time.Second

// McpServerConfig configures an MCP server connection.
type McpServerConfig struct {
	// Transport configuration (stdio or streamable HTTP).
	Transport McpServerTransportConfig `json:"transport" mapstructure:"transport"`

	// Whether this server is enabled. Default: true.
	Enabled *bool `json:"enabled,omitempty" mapstructure:"enabled"`

	// Whether this server is required. If true, a connection or listing
	// failure fails the whole listing instead of being skipped.
	Required bool `json:"required,omitempty" mapstructure:"required"`

	// Timeout for server startup and tool listing.
	// Default: DefaultStartupTimeout.
	StartupTimeoutSec *int `json:"startup_timeout_sec,omitempty" mapstructure:"startup_timeout_sec"`

	// Timeout for individual tool calls.
	// Default: DefaultToolTimeout.
	ToolTimeoutSec *int `json:"tool_timeout_sec,omitempty" mapstructure:"tool_timeout_sec"`

	// Explicit allow-list of tool names. If set, only these tools are exposed.
	EnabledTools []string `json:"enabled_tools,omitempty" mapstructure:"enabled_tools"`

	// Explicit deny-list of tool names. These tools are never exposed.
	DisabledTools []string `json:"disabled_tools,omitempty" mapstructure:"disabled_tools"`
}

// IsEnabled returns whether this server config is enabled (default: true).
func (c *McpServerConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// GetStartupTimeout returns the startup timeout, using DefaultStartupTimeout if not set.
func (c *McpServerConfig) GetStartupTimeout() time.Duration {
	if c.StartupTimeoutSec != nil {
		return time.Duration(*c.StartupTimeoutSec) * time.Second
	}
	return DefaultStartupTimeout
}

// GetToolTimeout returns the tool call timeout, using DefaultToolTimeout if not set.
func (c *McpServerConfig) GetToolTimeout() time.Duration {
	if c.ToolTimeoutSec != nil {
		return time.Duration(*c.ToolTimeoutSec) * time.Second
	}
	return DefaultToolTimeout
}

// Validate checks that exactly one transport is configured.
func (c *McpServerConfig) Validate() error {
	switch {
	case c.Transport.IsStdio() && c.Transport.IsHTTP():
		return fmt.Errorf("both command and url are set")
	case !c.Transport.IsStdio() && !c.Transport.IsHTTP():
		return fmt.Errorf("neither command nor url is set")
	}
	return nil
}

// McpServerTransportConfig specifies how to connect to the MCP server.
type McpServerTransportConfig struct {
	// Stdio transport: spawn a subprocess.
	// Mutually exclusive with URL.
	Command string            `json:"command,omitempty" mapstructure:"command"`
	Args    []string          `json:"args,omitempty" mapstructure:"args"`
	Env     map[string]string `json:"env,omitempty" mapstructure:"env"`
	Cwd     string            `json:"cwd,omitempty" mapstructure:"cwd"`

	// Streamable HTTP transport: connect to a URL.
	// Mutually exclusive with Command.
	URL string `json:"url,omitempty" mapstructure:"url"`
}

// IsStdio returns true if this config uses stdio transport.
func (t *McpServerTransportConfig) IsStdio() bool {
	return t.Command != ""
}

// IsHTTP returns true if this config uses streamable HTTP transport.
func (t *McpServerTransportConfig) IsHTTP() bool {
	return t.URL != ""
}

// DefaultServers returns the server set used when none is configured: the
// reference filesystem server rooted at dir (the working directory when empty).
func DefaultServers(dir string) map[string]McpServerConfig {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return map[string]McpServerConfig{
		"filesystem": {
			Transport: McpServerTransportConfig{
				Command: "npx",
				Args:    []string{"-y", "@modelcontextprotocol/server-filesystem", dir},
			},
		},
	}
}

// ToolFilter controls which MCP tools are exposed from a server.
// A tool is allowed if: (1) enabled is nil (no allowlist) OR the tool is in enabled,
// AND (2) the tool is not in disabled.
type ToolFilter struct {
	Enabled  map[string]bool // Allow-list (nil = allow all)
	Disabled map[string]bool // Deny-list
}

// NewToolFilter creates a ToolFilter from the config's enabled/disabled tool lists.
func NewToolFilter(enabledTools, disabledTools []string) ToolFilter {
	var enabled map[string]bool
	if len(enabledTools) > 0 {
		enabled = make(map[string]bool, len(enabledTools))
		for _, t := range enabledTools {
			enabled[t] = true
		}
	}

	disabled := make(map[string]bool, len(disabledTools))
	for _, t := range disabledTools {
		disabled[t] = true
	}

	return ToolFilter{Enabled: enabled, Disabled: disabled}
}

// Allows returns whether the given tool name passes the filter.
func (f *ToolFilter) Allows(toolName string) bool {
	if f.Enabled != nil && !f.Enabled[toolName] {
		return false
	}
	return !f.Disabled[toolName]
}
