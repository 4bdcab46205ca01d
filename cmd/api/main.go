package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "helpdesk",
		Short: "Multi-tenant IT helpdesk",
		Long:  `Helpdesk serves the ticket API and pages, and manages the database schema.`,
		// Running the binary without a subcommand starts the server.
		RunE: runServe,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
