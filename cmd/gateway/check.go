package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"security-gateway/internal/config"
	"security-gateway/middleware/security/domain"
)

func newCheckCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration and print the effective profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROFILE\tWINDOW\tMAX\tSLOW-DOWN")

			policies := cfg.Security.Policies()
			slow := cfg.Security.SlowDowns()
			scopes := make([]string, 0, len(policies))
			for s := range policies {
				scopes = append(scopes, string(s))
			}
			sort.Strings(scopes)
			for _, s := range scopes {
				p := policies[domain.Scope(s)]
				sd := "-"
				if d, ok := slow[p.Scope]; ok {
					sd = fmt.Sprintf("after %d, +%s each, max %s", d.DelayAfter, d.Delay, d.MaxDelay)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.Scope, p.Window, p.Max, sd)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "\nstore=%s failure_policy=%s burst=%d/%s threshold=%d max_body=%d\n",
				cfg.Security.Store, cfg.Security.FailurePolicy,
				cfg.Security.Burst.Max, cfg.Security.Burst.Window,
				cfg.Security.Reputation.Threshold, cfg.Security.MaxBodyBytes)
			return nil
		},
	}
}
