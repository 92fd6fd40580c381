// Package cmd implements the command-line interface for the crawl engine:
// the root command and its crawl/seed/pod-info/worker subcommands.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andrewkchan/podcrawl/cmd/crawl"
	"github.com/andrewkchan/podcrawl/cmd/podinfo"
	"github.com/andrewkchan/podcrawl/cmd/seed"
	"github.com/andrewkchan/podcrawl/cmd/worker"
)

// rootCmd is the CLI entry point.
var rootCmd = &cobra.Command{
	Use:   "podcrawl",
	Short: "A pod-sharded, single-machine web crawler",
	Long:  `podcrawl partitions the crawl frontier across N independent pods and drives each with its own fetcher and parser worker processes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command with a fresh background context.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "podcrawl version 1.0.0")
		},
	})

	rootCmd.AddCommand(crawl.Command())
	rootCmd.AddCommand(seed.Command())
	rootCmd.AddCommand(podinfo.Command())
	rootCmd.AddCommand(worker.Command())
}
