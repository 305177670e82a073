package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"streamhalt/internal/finalizer"
	"streamhalt/internal/stability"
	"streamhalt/internal/streamenv"
)

func newFinalizeCommand(ctx *commandContext) *cobra.Command {
	var streamIndex int

	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Finalize provisional files without stopping any service",
		Long: "Probes each stream's provisional files for stability and strips the\n" +
			"temp_ prefix from those that have stopped growing. Useful after an\n" +
			"incomplete shutdown left files behind.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			probe := stability.New(
				time.Duration(cfg.Stability.SampleIntervalSeconds)*time.Second,
				cfg.Stability.MaxSamples,
				cfg.Stability.RequiredStableSamples,
				stability.LsofChecker{},
				logger,
			)
			drainer := finalizer.New(probe, logger)
			resolver := streamenv.NewResolver(cfg)

			streams := resolver.ResolveAll()
			if streamIndex > 0 {
				if streamIndex > resolver.Count() {
					return fmt.Errorf("stream %d out of range (1..%d)", streamIndex, resolver.Count())
				}
				streams = []streamenv.Stream{resolver.Resolve(streamIndex)}
			}

			out := cmd.OutOrStdout()
			totalFinalized, totalPending := 0, 0
			for _, stream := range streams {
				report := drainer.Drain(cmd.Context(), stream)
				totalFinalized += report.Finalized
				pending := report.PendingBusy + report.PendingUnstable + report.Failed
				totalPending += pending
				if report.Finalized > 0 || pending > 0 {
					fmt.Fprintf(out, "Stream %d: finalized %d, pending %d\n",
						stream.Index, report.Finalized, pending)
				}
			}
			fmt.Fprintf(out, "Finalized %d file(s), %d pending\n", totalFinalized, totalPending)
			return nil
		},
	}

	cmd.Flags().IntVar(&streamIndex, "stream", 0, "Finalize a single stream (1-based index)")
	return cmd
}
