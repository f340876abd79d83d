package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/i474232898/pm25-forecast/internal/config"
)

func predictCmd() *cobra.Command {
	var city, date string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run a single forecast and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := time.Parse("2006-01-02", date)
			if err != nil {
				return fmt.Errorf("invalid --date %q: use YYYY-MM-DD", date)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			c, err := buildComponents(ctx, cfg, prometheus.NewRegistry())
			if err != nil {
				return err
			}
			defer c.Close()

			p, err := c.forecasts.Forecast(ctx, city, target)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "City to forecast")
	cmd.Flags().StringVar(&date, "date", "", "Target date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("city")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
