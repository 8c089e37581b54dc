// File: cmd/browse.go
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/auspex/internal/agent"
	"github.com/xkilldash9x/auspex/internal/browser"
	"github.com/xkilldash9x/auspex/internal/llm"
	"github.com/xkilldash9x/auspex/internal/observability"
)

// newBrowseCmd creates and configures the `browse` command.
func newBrowseCmd() *cobra.Command {
	var (
		targetURL     string
		prompt        string
		vision        bool
		maxIterations int
		timeout       time.Duration
	)

	browseCmd := &cobra.Command{
		Use:   "browse",
		Short: "Runs an LLM-guided task against a web page",
		Long: `Browse opens the target URL and lets the model work toward the prompt.
Static pages are answered from a single cheap fetch; pages that need
interaction get a stealth browser session and an iterative action loop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			client := llm.NewClient(cfg.Agent.LLM, logger)
			launcher := browser.NewLauncher(cfg.Browser, logger)
			pool := browser.NewPool(cfg.Browser.PoolSize, launcher.Launch, cfg.Browser.AcquireTimeout, logger)
			defer func() {
				pool.Close()
				if err := launcher.Stop(); err != nil {
					logger.Warn("Browser shutdown failed", zap.Error(err))
				}
			}()

			ag, err := agent.New(cfg.Agent, client, pool, logger)
			if err != nil {
				return err
			}

			opts := agent.RunOptions{
				URL:           targetURL,
				Prompt:        prompt,
				MaxIterations: maxIterations,
				Timeout:       timeout,
				MemorySampler: agent.BrowserMemorySampler(),
			}
			if cmd.Flags().Changed("vision") {
				opts.Vision = &vision
			}

			result, err := ag.Run(ctx, opts)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), result.Report)

			switch result.Status {
			case agent.StatusError:
				return errors.New(result.Error)
			case agent.StatusAborted:
				return errors.New("run aborted")
			}
			return nil
		},
	}

	browseCmd.Flags().StringVarP(&targetURL, "url", "u", "", "Target URL to open (required)")
	browseCmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Task for the model to carry out (required)")
	browseCmd.Flags().BoolVar(&vision, "vision", false, "Attach screenshots to model calls (overrides config)")
	browseCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Maximum loop iterations (overrides config)")
	browseCmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall run timeout (overrides config)")
	_ = browseCmd.MarkFlagRequired("url")
	_ = browseCmd.MarkFlagRequired("prompt")

	return browseCmd
}
