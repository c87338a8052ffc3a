package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newResolveCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolve <handle-or-did>",
		Short: "Resolve a handle to its identity and hosting endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			_, resolver, _ := newClients(cfg)

			res, err := resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(res)
			}
			fmt.Printf("handle:   %s\n", res.Handle)
			fmt.Printf("did:      %s\n", res.DID)
			fmt.Printf("endpoint: %s\n", res.Endpoint)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
