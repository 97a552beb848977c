// Package main is the entry point for the sdfix CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	registerQuitHandler()
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "sdfix",
		Short:   "sdfix - iterative build-error fixing with LLM feedback",
		Version: version,
	}

	root.AddCommand(
		runCmd(),
		statusCmd(),
		reportCmd(),
		initCmd(),
	)

	return root
}
