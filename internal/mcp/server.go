// Package mcp provides an MCP (Model Context Protocol) server for ovocheck.
// Agents can type check snippets or project files and list the attributes
// versioned object classes get, without shelling out to the CLI.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ovo-tools/ovocheck/internal/build"
	"github.com/ovo-tools/ovocheck/internal/ovo"
	"github.com/ovo-tools/ovocheck/internal/output"
	"github.com/ovo-tools/ovocheck/internal/project"
)

// Server wraps the MCP server with ovocheck-specific functionality
type Server struct {
	mcpServer    *server.MCPServer
	project      *project.Project
	tools        map[string]bool
	lastActivity time.Time
	timeout      time.Duration
	mu           sync.RWMutex
}

// Config holds server configuration
type Config struct {
	Tools   []string      // Which tools to expose (empty = all)
	Timeout time.Duration // Inactivity timeout (0 = no timeout)
}

// AllTools lists all available tools
var AllTools = []string{"ovo_check", "ovo_fields", "ovo_settings"}

// New creates a new MCP server checking files of p.
func New(p *project.Project, cfg Config) (*Server, error) {
	mcpServer := server.NewMCPServer(
		"ovocheck",
		build.HostVersion,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		mcpServer:    mcpServer,
		project:      p,
		tools:        make(map[string]bool),
		lastActivity: time.Now(),
		timeout:      cfg.Timeout,
	}

	toolsToRegister := cfg.Tools
	if len(toolsToRegister) == 0 {
		toolsToRegister = AllTools
	}
	for _, toolName := range toolsToRegister {
		if err := s.registerTool(toolName); err != nil {
			return nil, fmt.Errorf("failed to register tool %s: %w", toolName, err)
		}
		s.tools[toolName] = true
	}
	return s, nil
}

// registerTool registers a single tool with the MCP server
func (s *Server) registerTool(name string) error {
	schema, ok := toolSchemaRegistry[name]
	if !ok {
		return fmt.Errorf("unknown tool: %s", name)
	}

	opts := []mcp.ToolOption{mcp.WithDescription(schema.Description)}
	for _, p := range schema.Parameters {
		propOpts := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		switch p.Type {
		case "boolean":
			opts = append(opts, mcp.WithBoolean(p.Name, propOpts...))
		default:
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		}
	}

	s.mcpServer.AddTool(mcp.NewTool(name, opts...), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.updateActivity()
		result, err := s.CallTool(ctx, name, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result), nil
	})
	return nil
}

// ServeStdio starts the server using stdio transport
func (s *Server) ServeStdio() error {
	if s.timeout > 0 {
		go s.timeoutChecker()
	}
	return server.ServeStdio(s.mcpServer)
}

// timeoutChecker monitors for inactivity and exits if timeout exceeded
func (s *Server) timeoutChecker() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.RLock()
		elapsed := time.Since(s.lastActivity)
		s.mu.RUnlock()

		if elapsed > s.timeout {
			fmt.Fprintf(os.Stderr, "ovocheck serve: timeout after %v of inactivity\n", s.timeout)
			os.Exit(0)
		}
	}
}

// updateActivity updates the last activity timestamp
func (s *Server) updateActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// ListTools returns the registered tools, sorted.
func (s *Server) ListTools() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tools := make([]string, 0, len(s.tools))
	for t := range s.tools {
		tools = append(tools, t)
	}
	sort.Strings(tools)
	return tools
}

// ToolSchema describes a tool's name, description, and parameters.
type ToolSchema struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Parameters  []ParameterSchema `json:"parameters" yaml:"parameters"`
}

// ParameterSchema describes a single tool parameter.
type ParameterSchema struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Required    bool   `json:"required" yaml:"required"`
}

// toolSchemaRegistry holds the schema definitions for all tools. Tools are
// registered from it.
var toolSchemaRegistry = map[string]ToolSchema{
	"ovo_check": {
		Name:        "ovo_check",
		Description: "Type check Python code with the versioned object plugin. Returns mypy style diagnostics and a summary.",
		Parameters: []ParameterSchema{
			{Name: "code", Type: "string", Description: "Program text to check as __main__. Takes precedence over path"},
			{Name: "path", Type: "string", Description: "File or directory to check, relative to the project root (default: whole project)"},
			{Name: "check_untyped_defs", Type: "boolean", Description: "Also check bodies of unannotated functions"},
		},
	},
	"ovo_fields": {
		Name:        "ovo_fields",
		Description: "List the typed attributes the plugin adds to each versioned object class, inherited ones included.",
		Parameters: []ParameterSchema{
			{Name: "code", Type: "string", Description: "Program text to analyze. Takes precedence over path"},
			{Name: "path", Type: "string", Description: "File or directory to analyze, relative to the project root (default: whole project)"},
		},
	},
	"ovo_settings": {
		Name:        "ovo_settings",
		Description: "Show the trigger substrings in effect after config file and environment overrides.",
	},
}

// GetToolSchemas returns schemas for all registered tools, sorted by name.
func (s *Server) GetToolSchemas() []ToolSchema {
	var schemas []ToolSchema
	for _, name := range s.ListTools() {
		if schema, ok := toolSchemaRegistry[name]; ok {
			schemas = append(schemas, schema)
		}
	}
	return schemas
}

// CallTool dispatches a tool call by name with the given arguments.
// Returns the JSON result string or an error.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	s.mu.RLock()
	registered := s.tools[name]
	s.mu.RUnlock()

	if !registered {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	switch name {
	case "ovo_check":
		untyped, _ := args["check_untyped_defs"].(bool)
		res, cached, err := s.run(ctx, args, untyped)
		if err != nil {
			return "", err
		}
		return toJSON(output.NewCheckOutput(res, cached))

	case "ovo_fields":
		res, _, err := s.run(ctx, args, false)
		if err != nil {
			return "", err
		}
		return toJSON(output.NewFieldsOutput(res))

	case "ovo_settings":
		settings := ovo.New(s.project.Config.PluginOptions()).Settings()
		return toJSON(map[string]ovo.TriggerSet{
			"decorator_classes": settings.DecoratorClasses,
			"base_classes":      settings.BaseClasses,
		})

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func (s *Server) run(ctx context.Context, args map[string]interface{}, untyped bool) (*build.Result, bool, error) {
	req := project.Request{}
	if code, _ := args["code"].(string); code != "" {
		req.Code = code
	} else if path, _ := args["path"].(string); path != "" {
		req.Paths = []string{path}
	}
	if untyped {
		req.Override = func(o *build.Options) { o.CheckUntypedDefs = true }
	}
	return s.project.Check(ctx, req)
}

func toJSON(v interface{}) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
