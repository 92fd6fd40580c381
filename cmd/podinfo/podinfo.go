// Package podinfo implements the `pod-info` subcommand: print the
// configured pod list and, optionally, which pod a given domain maps to,
// without connecting to any store.
package podinfo

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/andrewkchan/podcrawl/internal/config"
	"github.com/andrewkchan/podcrawl/internal/podmap"
)

var (
	cfgFile string
	domain  string
)

// Command builds the `pod-info` subcommand.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pod-info",
		Short: "Print the configured pod list, or the pod owning a domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), cfgFile, domain)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.Flags().StringVar(&domain, "domain", "", "report which pod owns this domain")

	return cmd
}

func run(out io.Writer, cfgFile, domain string) error {
	if err := config.InitializeViper(cfgFile); err != nil {
		return fmt.Errorf("pod-info: initialize configuration: %w", err)
	}

	appCfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("pod-info: load configuration: %w", err)
	}

	cc := appCfg.GetCrawlerConfig()
	n := len(cc.Pods)

	fmt.Fprintf(out, "%d pods configured\n", n)
	for i, p := range cc.Pods {
		fmt.Fprintf(out, "  pod %d: %s\n", i, p.StoreURL)
	}

	if domain != "" {
		fmt.Fprintf(out, "domain %q -> pod %d\n", domain, podmap.PodForDomain(domain, n))
	}

	return nil
}
