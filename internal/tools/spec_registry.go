// spec_registry.go provides the registry of built-in tool specifications.
//
// Each tool registers a SpecEntry via init(). Groups name the tool set of
// one stage ("supervisor" expands to conduct_research, think_tool,
// research_complete).
package tools

import (
	"sync"

	"github.com/mfateev/temporal-deep-research/internal/models"
)

// Tool groups, one per stage that offers built-in tools.
const (
	GroupScope      = "scope"
	GroupSupervisor = "supervisor"
	GroupResearcher = "researcher"
)

// SpecEntry is the registry unit for a single tool.
type SpecEntry struct {
	Name        string
	Constructor func() ToolSpec
	Groups      []string
}

var (
	mu           sync.RWMutex
	specRegistry = map[string]SpecEntry{}
	toolGroups   = map[string][]string{}
)

// RegisterSpec adds a SpecEntry to the global registry and to each of its groups.
func RegisterSpec(entry SpecEntry) {
	mu.Lock()
	defer mu.Unlock()
	specRegistry[entry.Name] = entry
	for _, g := range entry.Groups {
		toolGroups[g] = append(toolGroups[g], entry.Name)
	}
}

// BuildSpecs constructs ToolSpec values for the given names.
// Group names are expanded first. Unknown names are skipped.
func BuildSpecs(names []string) []ToolSpec {
	expanded := ExpandGroups(names)

	mu.RLock()
	defer mu.RUnlock()

	specs := make([]ToolSpec, 0, len(expanded))
	for _, name := range expanded {
		entry, ok := specRegistry[name]
		if !ok {
			continue
		}
		specs = append(specs, entry.Constructor())
	}
	return specs
}

// Declarations builds the declarations for the given names or groups.
func Declarations(names ...string) []models.ToolDeclaration {
	specs := BuildSpecs(names)
	decls := make([]models.ToolDeclaration, len(specs))
	for i, s := range specs {
		decls[i] = s.ToDeclaration()
	}
	return decls
}

// ExpandGroups replaces group names with their member tool names in
// registration order. Non-group names pass through unchanged.
func ExpandGroups(names []string) []string {
	mu.RLock()
	defer mu.RUnlock()

	var out []string
	for _, name := range names {
		if members, ok := toolGroups[name]; ok {
			out = append(out, members...)
		} else {
			out = append(out, name)
		}
	}
	return out
}
