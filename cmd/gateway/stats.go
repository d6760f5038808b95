package main

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"security-gateway/internal/config"
	"security-gateway/middleware/security/infra"
)

func newStatsCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print cumulative decision counters (stats.backend=redis only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Stats.Backend != "redis" {
				return errors.New("stats command requires stats.backend=redis")
			}
			rdb, err := newRedis(cmd.Context(), cfg.Redis)
			if err != nil {
				return err
			}
			defer rdb.Close()

			snap, err := infra.NewRedisStatsStore(rdb, infra.WithStatsPrefix(cfg.Stats.Prefix)).Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "COUNTER\tVALUE")
			printCounts(tw, "total", snap.Total)
			printCounts(tw, "scope", snap.Scope)
			return tw.Flush()
		},
	}
}

func printCounts(tw *tabwriter.Writer, group string, m map[string]int64) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s.%s\t%d\n", group, k, m[k])
	}
}
