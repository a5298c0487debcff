package mcp

import (
	"crypto/sha1"
	"fmt"
	"log"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// McpToolNameDelimiter separates "mcp", server name, and tool name.
	McpToolNameDelimiter = "__"

	// McpToolNamePrefix is the prefix for all MCP tool names.
	McpToolNamePrefix = "mcp"

	// MaxToolNameLength is the maximum length for a qualified tool name.
	// Both providers require tool names to match ^[a-zA-Z0-9_-]+$ and be <= 64 chars.
	MaxToolNameLength = 64
)

// ToolInfo holds a discovered MCP tool with the original server and tool
// names needed for dispatch.
type ToolInfo struct {
	QualifiedName string
	ServerName    string
	ToolName      string
	Tool          *gomcp.Tool
}

// SanitizeName replaces characters not in [a-zA-Z0-9_-] with underscore.
// Returns "_" if the input is empty after sanitization.
func SanitizeName(name string) string {
	sanitized := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-' {
			sanitized = append(sanitized, c)
		} else {
			sanitized = append(sanitized, '_')
		}
	}
	if len(sanitized) == 0 {
		return "_"
	}
	return string(sanitized)
}

func sha1Hex(s string) string {
	h := sha1.New()
	h.Write([]byte(s))
	return fmt.Sprintf("%x", h.Sum(nil))
}

func rawToolName(serverName, toolName string) string {
	return McpToolNamePrefix + McpToolNameDelimiter + serverName + McpToolNameDelimiter + toolName
}

// QualifyToolName creates a qualified MCP tool name from server and tool names.
// Format: mcp__<sanitized_server>__<sanitized_tool>
// If the result exceeds MaxToolNameLength, it is truncated and a SHA1 suffix appended.
func QualifyToolName(serverName, toolName string) string {
	raw := rawToolName(serverName, toolName)
	qualified := SanitizeName(raw)
	if len(qualified) > MaxToolNameLength {
		hash := sha1Hex(raw)
		qualified = qualified[:MaxToolNameLength-len(hash)] + hash
	}
	return qualified
}

// QualifyTools assigns qualified names to tools, preserving input order.
//
// Exact duplicates (same server and tool) are skipped with a warning, as are
// distinct tools whose names collide after sanitization; the first one wins.
func QualifyTools(tools []ToolInfo) []ToolInfo {
	seenRaw := make(map[string]bool)
	used := make(map[string]bool)
	out := make([]ToolInfo, 0, len(tools))

	for _, tool := range tools {
		raw := rawToolName(tool.ServerName, tool.ToolName)
		if seenRaw[raw] {
			log.Printf("mcp: skipping duplicated tool %s", raw)
			continue
		}
		seenRaw[raw] = true

		qualified := QualifyToolName(tool.ServerName, tool.ToolName)
		if used[qualified] {
			log.Printf("mcp: skipping duplicated tool %s", qualified)
			continue
		}
		used[qualified] = true

		tool.QualifiedName = qualified
		out = append(out, tool)
	}

	return out
}

// FilterTools filters a list of ToolInfo items using the given ToolFilter.
func FilterTools(tools []ToolInfo, filter ToolFilter) []ToolInfo {
	filtered := make([]ToolInfo, 0, len(tools))
	for _, tool := range tools {
		if filter.Allows(tool.ToolName) {
			filtered = append(filtered, tool)
		}
	}
	return filtered
}
