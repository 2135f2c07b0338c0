package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ovo-tools/ovocheck/internal/mcp"
)

var (
	callList bool
	callPipe bool
)

var callCmd = &cobra.Command{
	Use:   "call [tool] [json-args]",
	Short: "Call an MCP tool once from the command line",
	Long: `Call one of the MCP tools with JSON arguments and print its JSON result.

Modes:
  ovocheck call --list                     List all tools and parameters
  ovocheck call <tool> '{"key":"value"}'   Call a tool with JSON args
  ovocheck call --pipe                     Read JSON lines from stdin

Tool names accept shorthand: "check" is equivalent to "ovo_check".

Examples:
  ovocheck call --list
  ovocheck call check '{"path":"nova/objects"}'
  ovocheck call fields '{"code":"..."}'
  ovocheck call settings
  echo '{"tool":"ovo_settings"}' | ovocheck call --pipe`,
	Args: cobra.MaximumNArgs(2),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
	callCmd.Flags().BoolVar(&callList, "list", false, "List all available tools and their parameters")
	callCmd.Flags().BoolVar(&callPipe, "pipe", false, "Read JSON lines from stdin (pipe mode)")
}

func runCall(cmd *cobra.Command, args []string) error {
	if !callList && !callPipe && len(args) == 0 {
		return fmt.Errorf("tool name required (run 'ovocheck call --list' to see available tools)")
	}

	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	srv, err := mcp.New(p, mcp.Config{Tools: mcp.AllTools})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	switch {
	case callList:
		return runCallList(cmd.OutOrStdout(), srv)
	case callPipe:
		return runCallPipe(cmd, srv)
	default:
		return runCallSingle(cmd, srv, args)
	}
}

func runCallList(w io.Writer, srv *mcp.Server) error {
	schemas := srv.GetToolSchemas()

	if outputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(schemas)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(schemas)
}

func runCallSingle(cmd *cobra.Command, srv *mcp.Server, args []string) error {
	toolName := normalizeToolName(args[0])

	toolArgs := make(map[string]interface{})
	if len(args) >= 2 {
		if err := json.Unmarshal([]byte(args[1]), &toolArgs); err != nil {
			return fmt.Errorf("invalid JSON args: %w", err)
		}
	}

	result, err := srv.CallTool(cmd.Context(), toolName, toolArgs)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}

// pipeRequest is the JSON format for pipe mode input.
type pipeRequest struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args"`
}

// pipeResponse is the JSON format for pipe mode output.
type pipeResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func runCallPipe(cmd *cobra.Command, srv *mcp.Server) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	scanner := bufio.NewScanner(cmd.InOrStdin())
	// Programs passed as code can be large.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req pipeRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			enc.Encode(pipeResponse{Error: fmt.Sprintf("invalid JSON: %v", err)})
			continue
		}
		if req.Args == nil {
			req.Args = make(map[string]interface{})
		}

		result, err := srv.CallTool(cmd.Context(), normalizeToolName(req.Tool), req.Args)
		if err != nil {
			enc.Encode(pipeResponse{Error: err.Error()})
			continue
		}
		enc.Encode(pipeResponse{Result: json.RawMessage(result)})
	}
	return scanner.Err()
}

// normalizeToolName converts shorthand names to full tool names.
// "check" -> "ovo_check", "ovo_check" -> "ovo_check"
func normalizeToolName(name string) string {
	if !strings.HasPrefix(name, "ovo_") {
		return "ovo_" + name
	}
	return name
}
