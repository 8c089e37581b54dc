// File: cmd/root.go
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/auspex/internal/config"
	"github.com/xkilldash9x/auspex/internal/observability"
)

var (
	cfgFile string
	cfg     *config.Config
)

// envAliases maps the short LLM_* variables onto the AUSPEX_* keys viper
// reads, so `LLM_API_KEY=... auspex browse` works without a config file.
var envAliases = [][2]string{
	{"LLM_API_KEY", "AUSPEX_AGENT_LLM_API_KEY"},
	{"LLM_BASE_URL", "AUSPEX_AGENT_LLM_BASE_URL"},
	{"LLM_MODEL", "AUSPEX_AGENT_LLM_MODEL"},
}

var rootCmd = &cobra.Command{
	Use:           "auspex",
	Short:         "Auspex is an LLM-guided web interaction and scraping engine.",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		applyEnvAliases()

		loaded, err := config.Load(cfgFile)
		if err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "auspex"})
			return err
		}
		cfg = loaded

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("starting auspex", zap.String("version", Version))
		return nil
	},
}

func applyEnvAliases() {
	for _, alias := range envAliases {
		if v, ok := os.LookupEnv(alias[0]); ok && os.Getenv(alias[1]) == "" {
			os.Setenv(alias[1], v)
		}
	}
}

// Execute runs the root command under a signal-aware context. Ctrl-C
// cancels the in-flight run, which surfaces as an aborted result.
func Execute() {
	ctx, stop := signal.NotifyContext(rootCmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./auspex.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.AddCommand(newBrowseCmd())
	rootCmd.AddCommand(newScrapeCmd())
}
