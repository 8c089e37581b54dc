// File: cmd/scrape.go
package cmd

import (
	"fmt"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/auspex/internal/browser"
	"github.com/xkilldash9x/auspex/internal/observability"
	"github.com/xkilldash9x/auspex/internal/scraper"
	"github.com/xkilldash9x/auspex/internal/urlguard"
)

var jsonOut = json.ConfigCompatibleWithStandardLibrary

// newScrapeCmd creates and configures the `scrape` command.
func newScrapeCmd() *cobra.Command {
	var (
		urls         []string
		tier         string
		mainOnly     bool
		waitSelector string
		captureJSON  bool
		timeout      time.Duration
		concurrency  int
	)

	scrapeCmd := &cobra.Command{
		Use:   "scrape",
		Short: "Extracts page content through the tiered fetch cascade",
		Long: `Scrape fetches each URL with the cheapest tier that yields real content:
plain HTTP first, then a browser-impersonating HTTP client, then a full
stealth browser session. Results are printed as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			forceTier, err := parseTier(tier)
			if err != nil {
				return err
			}

			launcher := browser.NewLauncher(cfg.Browser, logger)
			pool := browser.NewPool(cfg.Browser.PoolSize, launcher.Launch, cfg.Browser.AcquireTimeout, logger)
			defer func() {
				pool.Close()
				if err := launcher.Stop(); err != nil {
					logger.Warn("Browser shutdown failed", zap.Error(err))
				}
			}()

			s := scraper.New(cfg.Scraper, urlguard.New(logger), pool, logger)

			var payload any
			if len(urls) == 1 {
				res, err := s.Scrape(ctx, scraper.Request{
					URL:          urls[0],
					ForceTier:    forceTier,
					MainOnly:     mainOnly,
					WaitSelector: waitSelector,
					CaptureJSON:  captureJSON,
					Timeout:      timeout,
				})
				if err != nil {
					return err
				}
				payload = res
			} else {
				if forceTier != "" || waitSelector != "" || captureJSON {
					return fmt.Errorf("--tier, --selector and --capture-json apply to single-URL scrapes only")
				}
				payload = s.ScrapeMany(ctx, urls, concurrency)
			}

			out, err := jsonOut.MarshalIndent(payload, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode results: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	scrapeCmd.Flags().StringSliceVarP(&urls, "url", "u", nil, "URL to scrape; repeat for a batch (required)")
	scrapeCmd.Flags().StringVarP(&tier, "tier", "t", "", "Force a single tier: http, stealth or browser")
	scrapeCmd.Flags().BoolVar(&mainOnly, "main-only", false, "Extract only the main article content")
	scrapeCmd.Flags().StringVar(&waitSelector, "selector", "", "CSS selector to await before extraction (browser tier)")
	scrapeCmd.Flags().BoolVar(&captureJSON, "capture-json", false, "Record JSON API responses seen during the page load (browser tier)")
	scrapeCmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-URL timeout (overrides config)")
	scrapeCmd.Flags().IntVarP(&concurrency, "concurrency", "j", 0, "Concurrent scrapes for a batch (overrides config)")
	_ = scrapeCmd.MarkFlagRequired("url")

	return scrapeCmd
}

func parseTier(s string) (scraper.Tier, error) {
	switch scraper.Tier(s) {
	case "", scraper.TierHTTP, scraper.TierStealth, scraper.TierBrowser:
		return scraper.Tier(s), nil
	default:
		return "", fmt.Errorf("unknown tier %q (expected http, stealth or browser)", s)
	}
}
