// Package seed implements the `seed` subcommand: validate and preview a
// seed file without starting a crawl, so an operator can sanity-check a
// list before handing it to `crawl --seed-file`.
package seed

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/andrewkchan/podcrawl/internal/frontier"
	"github.com/andrewkchan/podcrawl/internal/podmap"
	"github.com/andrewkchan/podcrawl/internal/urlutil"
)

var podCount int

// Command builds the `seed` subcommand.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <file>",
		Short: "Validate a seed file and report its pod distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), args[0], podCount)
		},
	}

	cmd.Flags().IntVar(&podCount, "pods", 1, "pod count used to report per-pod URL distribution")

	return cmd
}

func run(out io.Writer, path string, pods int) error {
	urls, err := frontier.ReadSeedFile(path)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	counts := make([]int, pods)
	for _, u := range urls {
		domain, ok := urlutil.ExtractDomain(u)
		if !ok {
			fmt.Fprintf(out, "skip %q: cannot extract domain\n", u)
			continue
		}
		counts[podmap.PodForDomain(domain, pods)]++
	}

	fmt.Fprintf(out, "%d seed URLs across %d pods\n", len(urls), pods)
	for i, c := range counts {
		fmt.Fprintf(out, "  pod %d: %d urls\n", i, c)
	}

	return nil
}
