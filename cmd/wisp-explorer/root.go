package main

import (
	"github.com/spf13/cobra"

	"github.com/matildepark/wisp-explorer/internal/atproto"
	"github.com/matildepark/wisp-explorer/internal/config"
	"github.com/matildepark/wisp-explorer/internal/identity"
	"github.com/matildepark/wisp-explorer/internal/logging"
	"github.com/matildepark/wisp-explorer/internal/manifest"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "wisp-explorer",
		Short:         "Gateway for handle-addressed static sites",
		Long:          "Resolves a handle to its identity and hosting endpoint, loads the site manifest published there, and serves the site under a reserved path prefix.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to YAML config file")

	rootCmd.AddCommand(
		newServeCmd(),
		newResolveCmd(),
		newSitesCmd(),
	)
	return rootCmd
}

// loadConfig reads the config named by --config (or WISP_CONFIG) and
// initializes logging from it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newClients(cfg *config.Config) (*atproto.Client, *identity.Resolver, *manifest.Fetcher) {
	client := atproto.NewClient(atproto.Config{Timeout: cfg.RequestTimeout})
	resolver := identity.NewResolver(client, cfg.ResolverHost, cfg.PLCDirectory)
	fetcher := manifest.NewFetcher(client, cfg.SiteCollection, cfg.DirectoryCollection)
	return client, resolver, fetcher
}
