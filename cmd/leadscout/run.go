package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"leadscout/config"
	"leadscout/internal/discovery"
	"leadscout/internal/pipeline"
	"leadscout/internal/scrape"
	"leadscout/internal/telemetry"
	"leadscout/provider"
	"leadscout/tools/web_fetch"
	"leadscout/tools/web_search"
)

// runCMD executes the pipeline once from the command line and prints the
// final state as JSON. No database, redis or index involved.
func runCMD() *cobra.Command {
	var cfgPath string
	var product string
	var description string
	var features []string
	var competitors []string

	var run = &cobra.Command{
		Use:   "run",
		Short: "Run the lead pipeline once and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)

			llm, err := provider.NewGenerator(cfg.LLM)
			if err != nil {
				return err
			}
			searcher, err := web_search.NewWebSearcher(web_search.Provider(cfg.Search.Provider), cfg.Search)
			if err != nil {
				return err
			}

			deps := pipeline.Deps{
				LLM: llm,
				Discovery: &discovery.Client{
					Searcher:    searcher,
					PerQuery:    cfg.Search.MaxResults,
					MaxInFlight: cfg.Search.MaxInFlight,
					Log:         log.New(log.Writer(), "[DISCOVERY] ", log.LstdFlags),
				},
				Artifacts:      &pipeline.ArtifactWriter{Dir: cfg.Storage.File.DataDir, Log: log.New(log.Writer(), "[ARTIFACTS] ", log.LstdFlags)},
				Telemetry:      telemetry.NewTelemetry(cfg.Telemetry),
				Logger:         log.New(log.Writer(), "[PIPELINE] ", log.LstdFlags),
				ScrapePerQuery: cfg.Scrape.PerQuery,
			}
			if cfg.Scrape.Enabled {
				fetcher, err := web_fetch.NewWebFetcher(web_fetch.ChromedpFetcherType, cfg.Scrape.Timeout, cfg.Scrape.MaxChars)
				if err != nil {
					return err
				}
				renderer, ok := fetcher.(scrape.HTMLRenderer)
				if !ok {
					return fmt.Errorf("fetcher %T cannot render raw html", fetcher)
				}
				deps.Scraper = &scrape.Browser{
					Renderer:    renderer,
					Fetcher:     fetcher,
					SearchURL:   cfg.Scrape.SearchURL,
					EngineHost:  cfg.Scrape.EngineHost,
					MaxInFlight: cfg.Scrape.MaxInFlight,
					Log:         log.New(log.Writer(), "[SCRAPE] ", log.LstdFlags),
				}
			}

			orch, err := pipeline.NewOrchestrator(deps)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if cfg.Server.RunTimeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Server.RunTimeout)
				defer cancel()
			}

			final, err := orch.Run(ctx, pipeline.NewState(product, description, features, competitors))
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(final, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	run.Flags().StringVar(&product, "product", "", "product name (required)")
	run.Flags().StringVar(&description, "description", "", "product description (required)")
	run.Flags().StringSliceVar(&features, "features", nil, "key product features")
	run.Flags().StringSliceVar(&competitors, "competitors", nil, "known competitors")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")
	_ = run.MarkFlagRequired("product")
	_ = run.MarkFlagRequired("description")

	return run
}
