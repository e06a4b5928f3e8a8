package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadfinder/internal/config"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover candidate businesses and write a snapshot",
	Long:  "Runs only the discovery phase. Candidates are written to the snapshot file and, when a store is configured, recorded as a run that `enrich --run` can pick up.",
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

		env, err := initPipeline(ctx, config.ModeDiscover)
		if err != nil {
			return err
		}
		defer env.Close()

		if spec.Postcode != "" {
			if spec.Center, err = env.Pipeline.Locate(ctx, spec.Postcode); err != nil {
				return err
			}
		}

		var runID string
		if env.Store != nil {
			run, err := env.Store.CreateRun(ctx, spec)
			if err != nil {
				return eris.Wrap(err, "discover: create run")
			}
			runID = run.ID
		}

		res, err := env.Pipeline.Discover(ctx, spec, runID)
		if err != nil {
			if runID != "" {
				failCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = env.Store.FailRun(failCtx, runID, err.Error())
			}
			return eris.Wrap(err, "discover")
		}
		if runID != "" {
			if err := env.Store.CompleteRun(ctx, runID, res.Set.Len(), 0); err != nil {
				return eris.Wrap(err, "discover: complete run")
			}
		}

		zap.L().Info("discover: complete",
			zap.String("run_id", runID),
			zap.Int("candidates", res.Set.Len()),
			zap.String("snapshot", cfg.Discovery.SnapshotPath),
		)
		if runID != "" {
			fmt.Fprintln(os.Stdout, runID)
		}
		return nil
	},
}

func init() {
	addSearchFlags(discoverCmd)
	discoverCmd.Flags().StringSlice("keyword", nil, "nearby-search keyword expression, repeatable (default presets)")
	discoverCmd.Flags().String("keywords-file", "", "YAML file of keyword groups")
	discoverCmd.Flags().String("snapshot", "", "candidate snapshot path (default discovery.snapshot_path)")
	rootCmd.AddCommand(discoverCmd)
}
