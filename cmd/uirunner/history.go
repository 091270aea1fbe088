package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/history"
)

var (
	historyLimit  int
	historyOffset int
	historyOutput string
	historyTest   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded runs",
}

var historyRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHistory(func(ctx context.Context, store history.Store) error {
			runs, err := store.ListRuns(ctx, historyLimit, historyOffset)
			if err != nil {
				return err
			}
			if historyOutput == "json" {
				printJSON(runs)
				return nil
			}
			if len(runs) == 0 {
				printMessage("No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID.String(),
					formatTime(r.StartedAt),
					r.Browser,
					strconv.Itoa(r.Total),
					strconv.Itoa(r.Passed),
					strconv.Itoa(r.Failed),
					strconv.Itoa(r.Skipped),
				})
			}
			printTable([]string{"ID", "STARTED", "BROWSER", "TOTAL", "PASSED", "FAILED", "SKIPPED"}, rows)
			return nil
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the results of one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("%w: %s", history.ErrInvalidRunID, args[0])
		}
		return withHistory(func(ctx context.Context, store history.Store) error {
			run, err := store.GetRun(ctx, id)
			if err != nil {
				return err
			}
			results, err := store.ListResults(ctx, id)
			if err != nil {
				return err
			}
			if historyOutput == "json" {
				printJSON(map[string]interface{}{"run": run, "results": results})
				return nil
			}
			printMessage(fmt.Sprintf("Run %s (%s, %s) report: %s\n", run.ID, run.Application, run.Environment, run.ReportPath))
			printResults(results)
			return nil
		})
	},
}

var historyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Show recent results of one test",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyTest == "" {
			return fmt.Errorf("--name is required")
		}
		return withHistory(func(ctx context.Context, store history.Store) error {
			results, err := store.ListByTest(ctx, historyTest, historyLimit)
			if err != nil {
				return err
			}
			if historyOutput == "json" {
				printJSON(results)
				return nil
			}
			printResults(results)
			return nil
		})
	},
}

func init() {
	historyCmd.PersistentFlags().StringVarP(&historyOutput, "output", "o", "table", "output format (table, json)")
	historyRunsCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs")
	historyRunsCmd.Flags().IntVar(&historyOffset, "offset", 0, "number of runs to skip")
	historyTestCmd.Flags().StringVar(&historyTest, "name", "", "test name")
	historyTestCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of results")

	historyCmd.AddCommand(historyRunsCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyTestCmd)
	rootCmd.AddCommand(historyCmd)
}

func printResults(results []*history.Result) {
	if len(results) == 0 {
		printMessage("No results recorded")
		return
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.TestName, string(r.Status), r.Worker, formatTime(r.StartedAt), r.Message})
	}
	printTable([]string{"TEST", "STATUS", "WORKER", "STARTED", "MESSAGE"}, rows)
}

func withHistory(fn func(ctx context.Context, store history.Store) error) error {
	ctx := context.Background()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	store, closeHistory, err := openHistory(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer closeHistory()
	if store == nil {
		return fmt.Errorf("history is disabled, set history.enabled=true")
	}
	return fn(ctx, store)
}
