package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mfateev/temporal-deep-research/internal/models"
)

var errGatewayClosed = errors.New("mcp gateway is closed")

// connectFunc opens a session to one configured server.
type connectFunc func(ctx context.Context, serverName string, cfg McpServerConfig) (*gomcp.ClientSession, error)

// Gateway is the worker-wide tool gateway. It owns one client session per
// configured MCP server, opened lazily on first use and reused by every
// activity until Close. A session that fails a call is dropped and reopened
// on the next use.
type Gateway struct {
	servers map[string]McpServerConfig
	connect connectFunc

	mu       sync.Mutex
	sessions map[string]*gomcp.ClientSession // server name → live session
	tools    map[string]ToolInfo             // qualified name → tool, from the latest listing
	closed   bool
}

// NewGateway creates a gateway for the given servers. No connection is made
// until the first ListTools or Invoke.
func NewGateway(servers map[string]McpServerConfig) *Gateway {
	g := &Gateway{
		servers:  servers,
		sessions: make(map[string]*gomcp.ClientSession),
		tools:    make(map[string]ToolInfo),
	}
	g.connect = g.connectToServer
	return g
}

// ServerNames returns the enabled server names in sorted order.
func (g *Gateway) ServerNames() []string {
	names := make([]string, 0, len(g.servers))
	for name, cfg := range g.servers {
		if cfg.IsEnabled() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ListTools lists the tools of every enabled server, in server-name order.
//
// A required server that cannot be reached fails the listing. An optional
// one is logged and its tools are omitted. The result replaces the
// gateway's resolution table used by Invoke.
func (g *Gateway) ListTools(ctx context.Context) ([]models.ToolDeclaration, error) {
	infos, err := g.refresh(ctx)
	if err != nil {
		return nil, err
	}
	decls := make([]models.ToolDeclaration, 0, len(infos))
	for _, info := range infos {
		decls = append(decls, toDeclaration(info))
	}
	return decls, nil
}

func (g *Gateway) refresh(ctx context.Context) ([]ToolInfo, error) {
	if g.isClosed() {
		return nil, errGatewayClosed
	}
	var all []ToolInfo
	for _, name := range g.ServerNames() {
		cfg := g.servers[name]
		tools, err := g.listServer(ctx, name, cfg)
		if err != nil {
			if cfg.Required {
				return nil, fmt.Errorf("required MCP server %s failed: %w", name, err)
			}
			log.Printf("mcp: server %s failed: %v", name, err)
			continue
		}
		all = append(all, FilterTools(tools, NewToolFilter(cfg.EnabledTools, cfg.DisabledTools))...)
	}

	qualified := QualifyTools(all)

	g.mu.Lock()
	g.tools = make(map[string]ToolInfo, len(qualified))
	for _, info := range qualified {
		g.tools[info.QualifiedName] = info
	}
	g.mu.Unlock()

	return qualified, nil
}

func (g *Gateway) listServer(ctx context.Context, name string, cfg McpServerConfig) ([]ToolInfo, error) {
	session, err := g.session(ctx, name)
	if err != nil {
		return nil, err
	}

	listCtx, cancel := context.WithTimeout(ctx, cfg.GetStartupTimeout())
	defer cancel()

	var tools []ToolInfo
	for tool, err := range session.Tools(listCtx, nil) {
		if err != nil {
			g.drop(name, session)
			return nil, fmt.Errorf("failed to list tools for %s: %w", name, err)
		}
		tools = append(tools, ToolInfo{ServerName: name, ToolName: tool.Name, Tool: tool})
	}
	return tools, nil
}

// Invoke calls a tool by its qualified name and returns its text output.
//
// Errors:
//   - *models.ToolResolutionError: no configured server exposes the name,
//     even after re-listing
//   - *models.ToolExecutionError: the tool ran and reported failure
//   - anything else: the server could not be reached or the call timed out
func (g *Gateway) Invoke(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	info, ok := g.lookup(name)
	if !ok {
		if _, err := g.refresh(ctx); err != nil {
			return "", err
		}
		if info, ok = g.lookup(name); !ok {
			return "", &models.ToolResolutionError{Name: name}
		}
	}

	session, err := g.session(ctx, info.ServerName)
	if err != nil {
		return "", err
	}

	cfg := g.servers[info.ServerName]
	callCtx, cancel := context.WithTimeout(ctx, cfg.GetToolTimeout())
	defer cancel()

	if args == nil {
		args = map[string]interface{}{}
	}
	result, err := session.CallTool(callCtx, &gomcp.CallToolParams{
		Name:      info.ToolName,
		Arguments: args,
	})
	if err != nil {
		g.drop(info.ServerName, session)
		return "", fmt.Errorf("MCP tool call %s/%s failed: %w", info.ServerName, info.ToolName, err)
	}

	text := ResultText(result)
	if result.IsError {
		return "", &models.ToolExecutionError{Name: name, Message: text}
	}
	return text, nil
}

func (g *Gateway) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func (g *Gateway) lookup(name string) (ToolInfo, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	info, ok := g.tools[name]
	return info, ok
}

// session returns the live session for a server, connecting if needed.
// Connecting holds the gateway lock so concurrent activities never spawn
// the same server twice.
func (g *Gateway) session(ctx context.Context, name string) (*gomcp.ClientSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return nil, errGatewayClosed
	}
	if s, ok := g.sessions[name]; ok {
		return s, nil
	}
	cfg, ok := g.servers[name]
	if !ok || !cfg.IsEnabled() {
		return nil, fmt.Errorf("MCP server %q is not configured", name)
	}
	s, err := g.connect(ctx, name, cfg)
	if err != nil {
		return nil, err
	}
	g.sessions[name] = s
	return s, nil
}

// drop closes and forgets a session if it is still the current one.
func (g *Gateway) drop(name string, s *gomcp.ClientSession) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessions[name] != s {
		return
	}
	delete(g.sessions, name)
	if err := s.Close(); err != nil {
		log.Printf("mcp: error closing session for %s: %v", name, err)
	}
}

// connectToServer creates and connects an MCP client to the given server.
func (g *Gateway) connectToServer(ctx context.Context, serverName string, cfg McpServerConfig) (*gomcp.ClientSession, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("MCP server %s: %w", serverName, err)
	}
	transport := cfg.Transport

	client := gomcp.NewClient(&gomcp.Implementation{
		Name:    "temporal-deep-research",
		Version: "1.0.0",
	}, nil)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.GetStartupTimeout())
	defer cancel()

	if transport.IsStdio() {
		// The subprocess must outlive the activity that started it, so it is
		// not bound to ctx.
		cmd := exec.Command(transport.Command, transport.Args...)
		if transport.Cwd != "" {
			cmd.Dir = transport.Cwd
		}
		if len(transport.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range transport.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}

		session, err := client.Connect(connectCtx, &gomcp.CommandTransport{Command: cmd}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MCP server %s (stdio): %w", serverName, err)
		}
		return session, nil
	}

	session, err := client.Connect(connectCtx, &gomcp.StreamableClientTransport{Endpoint: transport.URL}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MCP server %s (HTTP): %w", serverName, err)
	}
	return session, nil
}

// Close shuts down all connected MCP client sessions. Further calls fail.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for name, s := range g.sessions {
		if err := s.Close(); err != nil {
			log.Printf("mcp: error closing session for %s: %v", name, err)
		}
	}
	g.sessions = make(map[string]*gomcp.ClientSession)
	g.tools = make(map[string]ToolInfo)
	g.closed = true
}

func toDeclaration(info ToolInfo) models.ToolDeclaration {
	decl := models.ToolDeclaration{Name: info.QualifiedName}
	if info.Tool == nil {
		return decl
	}
	decl.Description = info.Tool.Description
	switch schema := info.Tool.InputSchema.(type) {
	case map[string]interface{}:
		decl.InputSchema = schema
	case nil:
	default:
		// Typed schemas (e.g. *jsonschema.Schema) round-trip through JSON.
		if raw, err := json.Marshal(schema); err == nil {
			var m map[string]interface{}
			if json.Unmarshal(raw, &m) == nil {
				decl.InputSchema = m
			}
		}
	}
	return decl
}

// ResultText flattens a tool result into the text handed back to the model.
// Text blocks are joined by newlines; other blocks are summarized; when a
// result carries only structured content it is rendered as JSON.
func ResultText(result *gomcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch content := c.(type) {
		case *gomcp.TextContent:
			parts = append(parts, content.Text)
		case *gomcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s, %d bytes]", content.MIMEType, len(content.Data)))
		case *gomcp.AudioContent:
			parts = append(parts, fmt.Sprintf("[audio %s, %d bytes]", content.MIMEType, len(content.Data)))
		case *gomcp.ResourceLink:
			parts = append(parts, fmt.Sprintf("[resource %s]", content.URI))
		case *gomcp.EmbeddedResource:
			if content.Resource != nil && content.Resource.Text != "" {
				parts = append(parts, content.Resource.Text)
			} else if content.Resource != nil {
				parts = append(parts, fmt.Sprintf("[resource %s]", content.Resource.URI))
			}
		}
	}
	if len(parts) == 0 && result.StructuredContent != nil {
		if raw, err := json.Marshal(result.StructuredContent); err == nil {
			parts = append(parts, string(raw))
		}
	}
	return strings.Join(parts, "\n")
}
