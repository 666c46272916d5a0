package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/i474232898/cropple-dashboard/internal/dashboard"
	"github.com/i474232898/cropple-dashboard/internal/farm"
)

func newFetchCmd() *cobra.Command {
	var (
		farmID   string
		lat, lon float64
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Aggregate one farm's dashboard once and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := loadRuntime()
			if err != nil {
				return err
			}
			defer rt.close()

			f := farm.Farm{ID: farmID}
			if cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon") {
				f.Latitude, f.Longitude = &lat, &lon
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), rt.cfg.HTTPTimeout*2)
			defer cancel()

			p := dashboard.NewProvider(f, rt.deps)
			defer p.Close()
			p.FetchAll(ctx)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(p.Data())
		},
	}
	cmd.Flags().StringVar(&farmID, "farm", "", "farm id")
	cmd.Flags().Float64Var(&lat, "lat", 0, "farm latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "farm longitude")
	_ = cmd.MarkFlagRequired("farm")
	return cmd
}
