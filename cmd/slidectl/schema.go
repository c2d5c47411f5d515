package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/dgallion1/slidegen/internal/prompt"
)

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of one slide",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(prompt.Schema())
		},
	}
}
