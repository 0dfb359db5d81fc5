package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tanner-pham/Baller-sub000/internal/config"
	"github.com/tanner-pham/Baller-sub000/internal/logging"
	"github.com/tanner-pham/Baller-sub000/internal/scrape"
)

// app holds what the subcommands share once the root pre-run has built it.
type app struct {
	mode     string
	headless bool
	timeout  time.Duration
	verbose  bool

	cfg      *config.Config
	executor *scrape.Executor
	close    func()
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "scrapectl",
		Short:        "Run marketplace scrapes once and print JSON",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.close != nil {
				a.close()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.mode, "mode", "", "fetch mode: browser or http (default FETCH_MODE)")
	root.PersistentFlags().BoolVar(&a.headless, "headless", true, "run the browser headless")
	root.PersistentFlags().DurationVar(&a.timeout, "timeout", 0, "per-page timeout (default FETCH_TIMEOUT_MS)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newListingCmd(a), newSimilarCmd(a), newFingerprintCmd(a))
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.LoadScraper()
	if err != nil {
		return err
	}
	if a.mode != "" {
		cfg.FetchMode = a.mode
	}
	if cmd.Flags().Changed("headless") {
		cfg.Headless = a.headless
	}
	if a.timeout > 0 {
		cfg.FetchTimeout = a.timeout
	}

	level := cfg.LogLevel
	if a.verbose {
		level = "debug"
	}
	// JSON results go to stdout, so logs go to stderr.
	slog.SetDefault(logging.New(os.Stderr, level).With("service", "scrapectl"))

	fetcher, closeFetcher, err := scrape.NewFetcherFromConfig(cfg)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.executor = scrape.NewExecutor(fetcher, cfg.MarketplaceBaseURL)
	a.close = closeFetcher
	return nil
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
