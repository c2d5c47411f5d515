// Command slidectl replays recorded completions through the slide parser
// and prints the slide schema.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "slidectl",
		Short:         "Inspect slide generation streams",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(replayCmd(), schemaCmd())
	return cmd
}
