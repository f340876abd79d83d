package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const serviceName = "pm25-forecast"

func main() {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Walk-forward PM2.5 forecasts from history, weather forecasts and a trained model",
		Long: `Serves PM2.5 forecasts over HTTP. Each forecast extends a city's merged weather and
PM2.5 history one predicted day at a time up to the requested date.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(predictCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
