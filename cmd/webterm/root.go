package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for webterm.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webterm",
		Short: "Map websites into described site trees",
		Long: `webterm builds a SiteTree of a website: every reachable page with a short
description and the buttons a user can click.

The scan command lets a language model drive the crawler through tool calls
(OpenAI or Anthropic). The crawl command builds trees without a model.
Trees are stored in a local SQLite database and can be saved as JSON,
inspected with the tree and history commands, and queried with ask.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewScanCmd())
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewAskCmd())
	cmd.AddCommand(NewTreeCmd())
	cmd.AddCommand(NewHistoryCmd())
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
