package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newSitesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sites <handle-or-did>",
		Short: "List the sites published by a handle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			_, resolver, fetcher := newClients(cfg)

			res, err := resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			sites, err := fetcher.ListSites(cmd.Context(), res.Endpoint, res.DID)
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(sites)
			}
			if len(sites) == 0 {
				fmt.Printf("no sites published by %s\n", res.DID)
				return nil
			}
			for _, s := range sites {
				fmt.Printf("%s\t%d files\t%s\n", s.Name, s.FileCount, s.CreatedAt.Format("2006-01-02"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
