package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gridprobe/config"
	"gridprobe/store"
)

var runsDBPath string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Browse recorded comparison runs",
	Long:  `Browse the run history recorded by the sqlite storage backend.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	Run: func(cmd *cobra.Command, args []string) {
		stores := openHistory()
		defer stores.Close()

		runs, err := stores.History.ListRuns()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded")
			return
		}
		for _, r := range runs {
			finished := "running"
			if r.FinishedAt != nil {
				finished = r.FinishedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s  %-9s  started %s  finished %s\n  %s\n",
				r.ID, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), finished, r.TaskDescription)
		}
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the iterations of a recorded run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		stores := openHistory()
		defer stores.Close()

		iterations, err := stores.History.GetIterations(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(iterations) == 0 {
			fmt.Println("No iterations recorded for this run")
			return
		}
		for _, it := range iterations {
			marker := " "
			if it.Significant {
				marker = "*"
			}
			fmt.Printf("%s iteration %d  score %.3f  %s\n",
				marker, it.Iteration, it.InconsistencyScore, it.CreatedAt.Format("15:04:05"))
		}
	},
}

func openHistory() *store.Bundle {
	stores, err := store.NewBundle(config.Storage{Backend: "sqlite", Path: runsDBPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening history store: %v\n", err)
		os.Exit(1)
	}
	return stores
}

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.PersistentFlags().StringVar(&runsDBPath, "db", "gridprobe.db", "Path to the sqlite history database")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
}
