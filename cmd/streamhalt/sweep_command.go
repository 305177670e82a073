package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"streamhalt/internal/streamenv"
	"streamhalt/internal/sweeper"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Relocate finalized files into permanent storage",
		Long: "Runs the bounded sweep on its own: finalized files carrying a\n" +
			"timestamp suffix are moved into <final>/<YYYY>/<MM>/<DD>/<HH>/.\n" +
			"Stops early once a pass moves nothing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			resolver := streamenv.NewResolver(cfg)
			sweep := sweeper.New(
				cfg.Sweep.MaxPasses,
				time.Duration(cfg.Sweep.PassIntervalSeconds)*time.Second,
				resolver.ResolveAll,
				logger,
			)

			summary := sweep.Run(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Moved %d file(s) in %d pass(es)\n", summary.Moved, summary.Passes)
			if len(summary.Skipped) > 0 {
				fmt.Fprintf(out, "Left in place (no timestamp token): %d file(s)\n", len(summary.Skipped))
			}
			if !summary.Quiesced {
				fmt.Fprintln(out, "Pass bound reached before quiescence; files may remain.")
			}
			return nil
		},
	}
}
