// Package main provides the entry point for the codegraph CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/cmd/codegraph/commands"
	"github.com/codegraph-dev/codegraph/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "codegraph",
		Short: "Codegraph - repository health analysis and graph-backed code intelligence",
		Long: `Codegraph ingests a repository into a code graph, enriches it with git
history, runs security/structural/quality detectors, and scores overall
repository health.

Commands:
  analyze   Run the full pipeline once and report findings/health score
  watch     Watch a repository and re-analyze changed files as they settle
  diff      Compare the last analysis against a fresh run
  mcp       Start an MCP server exposing analysis as AI-agent tools
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(commands.NewDiffCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
