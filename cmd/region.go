package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/config"
	"github.com/sells-group/leadfinder/internal/geo"
)

var regionCmd = &cobra.Command{
	Use:   "region",
	Short: "List UK postcodes within a radius",
	Long:  "Lists the postcodes in the local postcode table that fall inside the search bounding box, west to east.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		applySearchFlags(cmd)
		if cmd.Flags().Changed("db") {
			cfg.Region.PostcodeDB, _ = cmd.Flags().GetString("db")
		}
		if err := cfg.Validate(config.ModeRegion); err != nil {
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

		db, err := geo.OpenPostcodeDB(cfg.Region.PostcodeDB)
		if err != nil {
			return err
		}
		defer db.Close() //nolint:errcheck

		radiusKM := float64(spec.RadiusMeters) / 1000
		postcodes, box, err := db.Region(ctx, center, radiusKM)
		if err != nil {
			return err
		}
		zap.L().Info("region: complete",
			zap.Stringer("center", center),
			zap.Float64("radius_km", radiusKM),
			zap.Float64("min_lat", box.MinLat), zap.Float64("max_lat", box.MaxLat),
			zap.Float64("min_lng", box.MinLng), zap.Float64("max_lng", box.MaxLng),
			zap.Int("postcodes", len(postcodes)),
		)
		return writeLines(os.Stdout, postcodes)
	},
}

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	addSearchFlags(regionCmd)
	regionCmd.Flags().String("db", "", "SQLite postcode table (default region.postcode_db)")
	rootCmd.AddCommand(regionCmd)
}
