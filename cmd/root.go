package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "marquee",
	Short: "Movie catalogue API server",
	Long: `marquee serves the movie catalogue API and the tooling around it:
database migrations, account bootstrap and event inspection.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
