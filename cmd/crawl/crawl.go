// Package crawl implements the `crawl` subcommand: load configuration,
// build the orchestrator, run Init then Run until a shutdown condition
// fires or the process receives a termination signal, mirroring the
// teacher's cmd/crawl package's Command/Start structure.
package crawl

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/andrewkchan/podcrawl/internal/config"
	"github.com/andrewkchan/podcrawl/internal/logger"
	"github.com/andrewkchan/podcrawl/internal/orchestrator"
)

var (
	cfgFile            string
	seedFile           string
	email              string
	maxPages           int64
	maxDurationSeconds int64
	resume             bool
)

// Deps holds crawl's constructed collaborators, built by NewCommandDeps so
// tests can substitute fakes without going through cobra flag parsing.
type Deps struct {
	Config *config.Config
	Log    logger.Interface
	OrchCfg orchestrator.Config
}

// NewCommandDeps loads configuration and builds the dependencies Start
// needs, following the teacher's dependency-factory pattern.
func NewCommandDeps(cfgFile, seedFile, email string, maxPages, maxDurationSeconds int64, resume bool) (*Deps, error) {
	appCfg, err := loadAppConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	log, err := buildLogger(appCfg)
	if err != nil {
		return nil, err
	}

	cc := appCfg.GetCrawlerConfig()
	cc.Email = email
	if seedFile != "" {
		cc.SeedFile = seedFile
	}
	cc.DebugPodAssignment = config.DebugPodAssignment()

	oc := orchestratorConfig(appCfg, cfgFile, email, maxPages, maxDurationSeconds, resume, cc.DebugPodAssignment)

	return &Deps{Config: appCfg, Log: log, OrchCfg: oc}, nil
}

// Command builds the `crawl` subcommand.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run the pod-sharded crawl engine to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Start(cmd.Context(), cfgFile, seedFile, email, maxPages, maxDurationSeconds, resume)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", "config file path")
	cmd.Flags().StringVar(&seedFile, "seed-file", "", "seed URL list file (overrides config)")
	cmd.Flags().StringVar(&email, "email", "", "operator email for the user agent string")
	cmd.Flags().Int64Var(&maxPages, "max-pages", 0, "global page budget across all pods (0 = unlimited)")
	cmd.Flags().Int64Var(&maxDurationSeconds, "max-duration", 0, "run time budget in seconds (0 = unlimited)")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume from existing pod state instead of reseeding")

	return cmd
}

// Start runs one full engine invocation: Init, then Run until a shutdown
// condition fires or ctx is cancelled.
func Start(ctx context.Context, cfgFile, seedFile, email string, maxPages, maxDurationSeconds int64, resume bool) error {
	deps, err := NewCommandDeps(cfgFile, seedFile, email, maxPages, maxDurationSeconds, resume)
	if err != nil {
		return err
	}

	var seedURLs []string
	if deps.OrchCfg.SeedFile != "" {
		seedURLs, err = readSeedFile(deps.OrchCfg.SeedFile)
		if err != nil {
			return fmt.Errorf("crawl: %w", err)
		}
	}

	orch := orchestrator.New(deps.OrchCfg, storeFactory(), deps.Log, nil)

	if err := orch.Init(ctx, seedURLs); err != nil {
		return fmt.Errorf("crawl: init: %w", err)
	}

	return orch.Run(ctx)
}
