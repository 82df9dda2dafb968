package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for linkspider.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkspider",
		Short: "Concurrent web crawler that follows absolute links",
		Long: `linkspider crawls the web starting from seed URLs.

Every fetched page is scanned for absolute links (href starting with "http"),
which are queued unless already seen. At most N fetches run at once and the
crawl ends when no pending URL and no in-flight fetch remain.

Fetch records can be streamed to Kafka, Redis or Neo4j and kept in a local
SQLite history database.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewCrawlCmd())
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
