package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "bangr-engine",
	Short: "Prediction market engine for tweet metrics",
	Long: `Order-book binary prediction market on tweet engagement.

Each market asks whether a tweet's likes, views, retweets, comments or
bookmarks will reach a multiple of their current value before a deadline.
YES and NO shares trade against each other on a price-time priority book
and settle against collateral once the market resolves.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
