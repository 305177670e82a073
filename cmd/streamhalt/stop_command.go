package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"streamhalt/internal/procs"
	"streamhalt/internal/sequencer"
)

const (
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"

	timeRounding = 100 * time.Millisecond
)

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Run the full shutdown sequence",
		Long: "Stops the stream producers, finalizes and relocates their recording\n" +
			"files, then stops the mover and relay services and removes ephemeral\n" +
			"env artifacts. Partial failures are reported but never abort the run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			store := ctx.openJournal(logger)
			if store != nil {
				defer store.Close()
			}

			seq := sequencer.NewSystem(cfg, store, logger)
			result, err := seq.Run(cmd.Context())
			if err != nil {
				return err
			}

			printRunSummary(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func printRunSummary(out io.Writer, result sequencer.Result) {
	colorize := shouldColorize(out)

	rows := [][]string{
		serviceRow(result.Producers),
	}
	if !result.SkippedFileStages {
		rows = append(rows, serviceRow(result.Mover))
	}
	rows = append(rows, serviceRow(result.Relay))

	fmt.Fprintln(out, renderTable(
		[]string{"Service", "Matched", "Stopped", "Escalated"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft},
	))

	if result.SkippedFileStages {
		fmt.Fprintln(out, "No producers were running; file stages skipped.")
	} else {
		fmt.Fprintf(out, "Finalized: %d  Pending: %d  Relocated: %d (passes %d)\n",
			result.Finalized, result.Pending, result.Relocated, result.SweepPasses)
		if result.Pending > 0 {
			line := fmt.Sprintf("%d file(s) left provisional; run `streamhalt stop` again to retry.", result.Pending)
			if colorize {
				line = ansiYellow + line + ansiReset
			}
			fmt.Fprintln(out, line)
		}
	}
	if len(result.CleanedEnvFiles) > 0 {
		fmt.Fprintf(out, "Removed ephemeral config: %s\n", strings.Join(result.CleanedEnvFiles, ", "))
	}

	line := fmt.Sprintf("Shutdown complete in %s (run %s)",
		result.FinishedAt.Sub(result.StartedAt).Round(timeRounding), result.RunID)
	if colorize {
		line = ansiGreen + line + ansiReset
	}
	fmt.Fprintln(out, line)
}

func serviceRow(outcome procs.Outcome) []string {
	return []string{
		outcome.Service,
		strconv.Itoa(outcome.Matched),
		yesNo(outcome.Stopped),
		yesNo(outcome.Escalated),
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
