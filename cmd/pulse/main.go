package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "pulse",
		Short: "market pulse: spot/futures snapshot broadcaster",
		// SilenceUsage is an option to silence usage when an error occurs.
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	root.AddCommand(serveCmd(), configCmd(), indicatorsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
