// Package main provides the article_agent command line: the HTTP API server
// plus local commands for driving writing tasks and the channel catalog.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath  string
	backend     string
	databaseURL string
	logFile     string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "article_agent",
	Short: "Article Agent workflow server and CLI",
	Long: `Article Agent drives AI-assisted articles through a nine-step editorial
workflow with human checkpoints, channel style resolution and material curation.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Store backend: sqlite, postgres or memory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db-url", "", "PostgreSQL URL (overrides config and DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
