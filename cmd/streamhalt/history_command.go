package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"streamhalt/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var events bool

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past shutdown runs from the journal",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cfg.Journal.Enabled {
				return fmt.Errorf("run journal is disabled in configuration")
			}
			store, err := journal.Open(cfg.Journal.Path)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			if len(args) == 1 || events {
				runID := ""
				if len(args) == 1 {
					runID = args[0]
				} else {
					runs, err := store.RecentRuns(cmd.Context(), 1)
					if err != nil {
						return err
					}
					if len(runs) == 0 {
						fmt.Fprintln(out, "No runs recorded yet.")
						return nil
					}
					runID = runs[0].ID
				}
				return printRunEvents(cmd, store, runID)
			}

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet.")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				elapsed := ""
				if !run.FinishedAt.IsZero() {
					elapsed = run.FinishedAt.Sub(run.StartedAt).Round(timeRounding).String()
				}
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format(time.DateTime),
					elapsed,
					strconv.Itoa(run.ProducersStopped),
					strconv.Itoa(run.FilesFinalized),
					strconv.Itoa(run.FilesRelocated),
					run.Outcome,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Elapsed", "Producers", "Finalized", "Relocated", "Outcome"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	cmd.Flags().BoolVar(&events, "events", false, "Show per-file events of the most recent run")
	return cmd
}

func printRunEvents(cmd *cobra.Command, store *journal.Store, runID string) error {
	fileEvents, err := store.FileEvents(cmd.Context(), runID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(fileEvents) == 0 {
		fmt.Fprintf(out, "No file events recorded for run %s.\n", runID)
		return nil
	}

	rows := make([][]string, 0, len(fileEvents))
	for _, event := range fileEvents {
		rows = append(rows, []string{
			strconv.Itoa(event.Stream),
			event.Name,
			event.Action,
			event.Detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Stream", "File", "Action", "Detail"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
	))
	return nil
}
