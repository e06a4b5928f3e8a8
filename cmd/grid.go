package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadfinder/internal/config"
	"github.com/sells-group/leadfinder/internal/geo"
)

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Print the sample grid for a search as GeoJSON",
	Long:  "Prints the bounding box and the nine sample points discovery would query, as a GeoJSON FeatureCollection.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		applySearchFlags(cmd)
		if err := cfg.Validate(config.ModeGrid); err != nil {
			return err
		}
		spec, err := searchSpec(cmd)
		if err != nil {
			return err
		}
		center, err := resolveCenter(ctx, spec)
		if err != nil {
			return err
		}

		data, err := geo.MarshalGrid(center, spec.RadiusMeters)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	},
}

func init() {
	addSearchFlags(gridCmd)
	rootCmd.AddCommand(gridCmd)
}
