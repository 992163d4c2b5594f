package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"wrfstage/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the local run-history index",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent staging invocations, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyLatestCmd = &cobra.Command{
	Use:   "latest <run-id>",
	Short: "Show the most recent invocation for a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryLatest,
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of records")
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyLatestCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.List(historyLimit)
	if err != nil {
		return err
	}
	printHistory(cmd, recs)
	return nil
}

func runHistoryLatest(cmd *cobra.Command, args []string) error {
	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Latest(args[0])
	if err != nil {
		return err
	}
	printHistory(cmd, []history.Record{*rec})
	return nil
}

func printHistory(cmd *cobra.Command, recs []history.Record) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "RUN\tSTATE\tEXIT\tFINISHED\tLOG")
	for _, rec := range recs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			rec.RunID, rec.State, rec.ExitCode,
			rec.FinishedAt.Local().Format(time.DateTime), rec.LogPath)
	}
}
