package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "bizassist",
	Short: "Business assistant that answers questions grounded in company data",
	Long: `bizassist forwards a question to an OpenAI-compatible chat model, optionally
enriched with a snapshot of authorized company tables.

Run "bizassist start" to serve the HTTP endpoint, "bizassist ask" to query it,
or "bizassist mcp" to expose the assistant to MCP clients over stdio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
