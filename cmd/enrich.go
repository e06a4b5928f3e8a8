package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadfinder/internal/config"
	"github.com/sells-group/leadfinder/internal/discovery"
	"github.com/sells-group/leadfinder/internal/pipeline"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich previously discovered candidates into leads",
	Long:  "Enriches the candidates in a snapshot file, or those stored for a run with --run, and writes the lead table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applySearchFlags(cmd)
		runID, _ := cmd.Flags().GetString("run")

		env, err := initPipeline(ctx, config.ModeEnrich)
		if err != nil {
			return err
		}
		defer env.Close()

		var sum *pipeline.Summary
		if runID != "" {
			sum, err = env.Pipeline.EnrichRun(ctx, runID)
		} else {
			var candidates []discovery.Candidate
			candidates, err = discovery.ReadSnapshot(cfg.Discovery.SnapshotPath)
			if err != nil {
				return err
			}
			sum, err = env.Pipeline.Enrich(ctx, candidates)
		}
		if sum != nil {
			_ = pipeline.WriteReport(os.Stderr, sum)
		}
		if err != nil {
			return eris.Wrap(err, "enrich")
		}
		return nil
	},
}

func init() {
	enrichCmd.Flags().String("run", "", "enrich the candidates stored for this run ID")
	enrichCmd.Flags().String("snapshot", "", "candidate snapshot to read (default discovery.snapshot_path)")
	enrichCmd.Flags().StringP("output", "o", "", "lead table path (default output.path)")
	enrichCmd.Flags().String("format", "", "lead table format: csv, xlsx or json (default from extension)")
	enrichCmd.MarkFlagsMutuallyExclusive("run", "snapshot")
	rootCmd.AddCommand(enrichCmd)
}
