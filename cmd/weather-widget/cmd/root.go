package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "weather-widget",
	Short: "Current conditions for a selected location, backed by OpenWeatherMap",
	Long: `weather-widget resolves a ZIP code or "City, ST" to coordinates, fetches
current conditions with caching and rate limiting, and keeps them refreshed
on an interval.

Configuration is read from the environment (and a .env file when present).`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(lookupCmd)
}
