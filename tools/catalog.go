package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Catalog is a thread-safe collection of tools keyed by lowercase name. It
// implements Host, so a populated catalog is a ready-to-use Tool Execution
// Host. Construct one at application start and pass it by reference; there
// is no package-level instance.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]Callable
}

// NewCatalog creates a catalog pre-populated with the given tools.
func NewCatalog(tools ...Callable) *Catalog {
	catalog := &Catalog{tools: make(map[string]Callable)}
	catalog.Add(tools...)
	return catalog
}

// Add registers tools, replacing any existing tool with the same name.
func (c *Catalog) Add(tools ...Callable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tool := range tools {
		c.tools[strings.ToLower(tool.Definition().Name)] = tool
	}
}

// Get retrieves a tool by name (case-insensitive).
func (c *Catalog) Get(name string) (Callable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tool, ok := c.tools[strings.ToLower(name)]
	return tool, ok
}

// Definitions returns every registered tool's definition, sorted by name so
// advertised tool lists are stable across requests.
func (c *Catalog) Definitions() []Definition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	definitions := make([]Definition, 0, len(c.tools))
	for _, tool := range c.tools {
		definitions = append(definitions, tool.Definition())
	}
	sort.Slice(definitions, func(i, j int) bool { return definitions[i].Name < definitions[j].Name })
	return definitions
}

// Execute implements Host by dispatching to the named tool.
func (c *Catalog) Execute(ctx context.Context, toolName string, args map[string]any) (string, error) {
	tool, ok := c.Get(toolName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, toolName)
	}
	return tool.Call(ctx, args)
}
