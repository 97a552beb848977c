package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amazon-science/SDFeedback/internal/config"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fix build errors in the current repository until the build is clean",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := runOptions{}
			opts.maxOverride, _ = cmd.Flags().GetInt("max")
			opts.policyOverride, _ = cmd.Flags().GetString("policy")
			opts.dryRun, _ = cmd.Flags().GetBool("dry-run")
			opts.noTUI, _ = cmd.Flags().GetBool("no-tui")
			opts.configPath, _ = cmd.Flags().GetString("config")
			return executeRun(opts)
		},
	}
	cmd.Flags().Int("max", 0, "override max iterations (0 = use config)")
	cmd.Flags().String("policy", "", "override regression policy (empty = use config)")
	cmd.Flags().Bool("dry-run", false, "report initial build errors and exit without changes")
	cmd.Flags().Bool("no-tui", false, "plain log output instead of the TUI")
	cmd.Flags().String("config", "", "path to sdfix.toml (default: search upward)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current or last run's state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus()
		},
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize a recorded trajectory",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("trajectory")
			return showReport(path)
		},
	}
	cmd.Flags().String("trajectory", "", "trajectory file to report on (default: latest in .sdfix/)")
	return cmd
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Scaffold sdfix.toml and .gitignore in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			created, err := config.ScaffoldProject(dir)
			if err != nil {
				return err
			}
			if len(created) == 0 {
				fmt.Println("All files already exist, nothing to create.")
				return nil
			}
			for _, path := range created {
				fmt.Printf("Created %s\n", path)
			}
			return nil
		},
	}
}
