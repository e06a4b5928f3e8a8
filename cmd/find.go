package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadfinder/internal/config"
	"github.com/sells-group/leadfinder/internal/pipeline"
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Discover, enrich and export leads around a location",
	Example: `  leadfinder find --postcode "SW1A 1AA" --radius 1500
  leadfinder find --lat 53.4807593 --lng -2.2426305 --keyword "florist" -o leads.xlsx`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applySearchFlags(cmd)
		spec, err := searchSpec(cmd)
		if err != nil {
			return err
		}
		if spec.Keywords, err = keywords(); err != nil {
			return err
		}

		env, err := initPipeline(ctx, config.ModeFind)
		if err != nil {
			return err
		}
		defer env.Close()

		sum, err := env.Pipeline.Find(ctx, spec)
		if sum != nil {
			_ = pipeline.WriteReport(os.Stderr, sum)
		}
		if err != nil {
			return eris.Wrap(err, "find")
		}
		return nil
	},
}

func init() {
	addSearchFlags(findCmd)
	findCmd.Flags().StringSlice("keyword", nil, "nearby-search keyword expression, repeatable (default presets)")
	findCmd.Flags().String("keywords-file", "", "YAML file of keyword groups")
	findCmd.Flags().String("snapshot", "", "candidate snapshot path (default discovery.snapshot_path)")
	findCmd.Flags().StringP("output", "o", "", "lead table path (default output.path)")
	findCmd.Flags().String("format", "", "lead table format: csv, xlsx or json (default from extension)")
	rootCmd.AddCommand(findCmd)
}
