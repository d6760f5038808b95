package main

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/spf13/cobra"

	"security-gateway/internal/config"
	"security-gateway/middleware/security/application"
	"security-gateway/middleware/security/infra"
)

// The blocklist commands only make sense with the Redis store; the memory
// store lives inside the serving process.
func newBlocklistCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocklist",
		Short: "Inspect and edit the shared IP blocklist (redis store only)",
	}

	reputation := func(cmd *cobra.Command) (application.Reputation, func(), error) {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return application.Reputation{}, nil, err
		}
		if cfg.Security.Store != "redis" {
			return application.Reputation{}, nil, errors.New("blocklist commands require security.store=redis")
		}
		rdb, err := newRedis(cmd.Context(), cfg.Redis)
		if err != nil {
			return application.Reputation{}, nil, err
		}
		store := infra.NewRedisStore(rdb, infra.WithRedisPrefix(cfg.Redis.Prefix))
		rep := application.Reputation{Store: store, Threshold: cfg.Security.Reputation.Threshold}
		return rep, func() { _ = rdb.Close() }, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List blocked IPs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, done, err := reputation(cmd)
			if err != nil {
				return err
			}
			defer done()
			ips, err := rep.Blocked(cmd.Context())
			if err != nil {
				return err
			}
			for _, ip := range ips {
				fmt.Fprintln(cmd.OutOrStdout(), ip)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "unblock <ip>",
		Short: "Remove an IP from the blocklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip, err := netip.ParseAddr(args[0])
			if err != nil {
				return fmt.Errorf("invalid ip %q: %w", args[0], err)
			}
			rep, done, err := reputation(cmd)
			if err != nil {
				return err
			}
			defer done()
			if err := rep.Unblock(cmd.Context(), ip.Unmap().String()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "unblocked %s\n", ip.Unmap())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "block <ip>",
		Short: "Add an IP to the blocklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ip, err := netip.ParseAddr(args[0])
			if err != nil {
				return fmt.Errorf("invalid ip %q: %w", args[0], err)
			}
			rep, done, err := reputation(cmd)
			if err != nil {
				return err
			}
			defer done()
			if err := rep.Store.Block(cmd.Context(), ip.Unmap().String(), time.Now()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "blocked %s\n", ip.Unmap())
			return nil
		},
	})

	return cmd
}
