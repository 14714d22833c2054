// Command jsonforge generates schema-valid JSON documents with language
// models and exposes the engine's building blocks as subcommands.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	compact    bool
)

var rootCmd = &cobra.Command{
	Use:   "jsonforge",
	Short: "Generate JSON that validates against a JSON Schema",
	Long: "jsonforge plans, generates, validates and repairs JSON documents with language models " +
		"until they satisfy a JSON Schema.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&compact, "compact", false, "print compact JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(normalizeCmd)
	rootCmd.AddCommand(analyzeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
