package main

import (
	"fmt"
	"time"

	goJWT "github.com/MrEthical07/goJWT"
	"github.com/spf13/cobra"
)

func newJWKSCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jwks",
		Short: "Inspect the configured key bundle",
	}
	cmd.AddCommand(newJWKSShowCmd(opts), newJWKSPruneCmd(opts))
	return cmd
}

func newJWKSShowCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the public keys of the bundle as a JWKS document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEngine(func(engine *goJWT.Engine) error {
				if engine.KeyBundle() == nil {
					return fmt.Errorf("no key source configured")
				}
				if err := engine.RefreshKeys(cmd.Context()); err != nil {
					return err
				}
				doc, err := engine.PublicJWKS(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(doc))
				return nil
			})
		},
	}
}

func newJWKSPruneCmd(opts *cliOptions) *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Refresh the bundle and drop keys inactive past the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("retention") {
				cfg.Keys.RetentionWindow = retention
			}
			engine, done, err := opts.engine(cfg)
			if err != nil {
				return err
			}
			defer done()

			bundle := engine.KeyBundle()
			if bundle == nil {
				return fmt.Errorf("no key source configured")
			}
			if err := engine.RefreshKeys(cmd.Context()); err != nil {
				return err
			}
			removed, err := engine.PruneInactiveKeys(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d keys, %d remain\n", removed, bundle.Len())
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "retention window overriding the configured one")
	return cmd
}
