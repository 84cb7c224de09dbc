// Package main provides the entry point for the scout CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for scout.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scout",
		Short: "URL discovery engine for websites",
		Long: `Scout maps the URL surface of a website. Starting from a seed URL it
crawls the link graph breadth-first and, optionally, probes common paths
from a wordlist to find resources no page links to.

Crawling is polite by default: robots.txt is honored and requests to the
same host are spaced out.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
