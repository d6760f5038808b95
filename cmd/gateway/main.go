package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "gateway",
		Short: "Anti-abuse reverse proxy in front of the repair-service web app",
		Long: `gateway sits in front of the web application and applies IP blocking,
burst detection, per-profile rate limits, progressive slow-down, body size
limits, CORS and security headers before proxying to the upstream.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ./configs/config.yaml)")

	root.AddCommand(
		newServeCommand(&configPath),
		newCheckCommand(&configPath),
		newBlocklistCommand(&configPath),
		newStatsCommand(&configPath),
	)
	return root
}
