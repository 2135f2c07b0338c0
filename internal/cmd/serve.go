package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ovo-tools/ovocheck/internal/mcp"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP server for AI agent integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

Agents editing versioned object code can check snippets and files, and list
synthesized attributes, without spawning a process per question. The server
runs against the project found from the working directory and shares its
result cache with the CLI.

Available Tools:
  ovo_check     Type check code or project files
  ovo_fields    List synthesized attributes per class
  ovo_settings  Show the trigger substrings in effect

Examples:
  ovocheck serve                        # Start with all tools
  ovocheck serve --tools check,fields   # Start with specific tools only
  ovocheck serve --timeout 0            # Never stop on inactivity
  ovocheck serve --list-tools           # Show available tools`,
	RunE: runServe,
}

var (
	serveTools     string
	serveTimeout   string
	serveListTools bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveTools, "tools", "", "Comma-separated list of tools to expose (default: all)")
	serveCmd.Flags().StringVar(&serveTimeout, "timeout", "30m", "Inactivity timeout (0 for no timeout)")
	serveCmd.Flags().BoolVar(&serveListTools, "list-tools", false, "List available tools")
}

func runServe(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if serveListTools {
		fmt.Fprintln(out, "Available MCP tools:")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  ovo_check     Type check code or project files")
		fmt.Fprintln(out, "  ovo_fields    List synthesized attributes per class")
		fmt.Fprintln(out, "  ovo_settings  Show the trigger substrings in effect")
		return nil
	}

	timeout, err := parseDuration(serveTimeout)
	if err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}

	var tools []string
	if serveTools != "" {
		for _, t := range strings.Split(serveTools, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tools = append(tools, normalizeToolName(t))
			}
		}
	}

	p, err := openProject(cmd)
	if err != nil {
		return err
	}
	server, err := mcp.New(p, mcp.Config{Tools: tools, Timeout: timeout})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintf(os.Stderr, "\novocheck serve: shutting down\n")
		os.Exit(0)
	}()

	// stdout carries the protocol
	fmt.Fprintf(os.Stderr, "ovocheck serve: starting MCP server for %s\n", p.Root)
	fmt.Fprintf(os.Stderr, "ovocheck serve: tools: %v\n", server.ListTools())
	if timeout > 0 {
		fmt.Fprintf(os.Stderr, "ovocheck serve: timeout: %v\n", timeout)
	}

	return server.ServeStdio()
}

func parseDuration(s string) (time.Duration, error) {
	if s == "0" || s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
