// Command canvaschat runs the chat gateway and a few offline helpers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"canvaschat/internal/infra/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "canvaschat",
	Short:         "canvaschat - chat with an AI webhook and preview its code on a canvas",
	Long:          "canvaschat serves the chat gateway (websocket RPC and REST) and offers offline render and run helpers.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: $CANVASCHAT_CONFIG or ./config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// configPath resolves the config file: --config, then CANVASCHAT_CONFIG,
// then ./config.yaml.
func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	if p := os.Getenv("CANVASCHAT_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
