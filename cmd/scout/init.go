package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scout-crawler/scout/internal/config"
)

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Init writes a configuration file with the default settings to the
current directory. Edit it to set the seed URL, politeness delays,
fuzzing options and custom headers, then run "scout crawl" without
flags.

Examples:
  # Create .scout.yaml in the current directory
  scout init

  # Create a JSON config at a specific path
  scout init -o scout.json

  # Overwrite an existing file
  scout init -f`,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile,
		"Output file path for the configuration (.yaml or .json)")
	cmd.Flags().BoolP("force", "f", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use -f to overwrite)", outputPath)
		}
	}

	if err := config.Default().Save(outputPath); err != nil {
		return fmt.Errorf("write configuration file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created configuration file: %s\n", outputPath)
	return nil
}
