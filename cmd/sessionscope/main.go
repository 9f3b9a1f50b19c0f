// Command sessionscope runs the transcript-watching service: serve starts
// the full pipeline and REST/SSE surface, migrate-config standalone-runs
// the config file migration, and reindex rebuilds the search index.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags "-X main.version=v1.0.0".
var version = "dev"

var cfgFile string

func main() {
	root := rootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessionscope",
		Short: "sessionscope — live session transcript fan-out and search",
		Long:  "sessionscope watches append-only session transcript files, fans live updates out to Telegram, Slack, and Discord, and keeps a searchable index of past sessions.",
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: sessionscope.yaml or $SESSIONSCOPE_CONFIG)")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(migrateConfigCmd())
	cmd.AddCommand(reindexCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("SESSIONSCOPE_CONFIG"); v != "" {
		return v
	}
	return "sessionscope.yaml"
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sessionscope %s\n", version)
		},
	}
}
