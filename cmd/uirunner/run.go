package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/metrics"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/notify"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/report"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/session"
	"github.com/hairizuanbinnoorazman/ui-automation-runner/suite"
)

var runOutput string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the smoke suite against the configured application",
	RunE:  runSuite,
}

func init() {
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "table", "output format (table, json)")
	rootCmd.AddCommand(runCmd)
}

func runSuite(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	log.Info(ctx, "starting run", map[string]interface{}{
		"version": Version,
		"commit":  Commit,
		"date":    BuildDate,
	})

	m := metrics.New()

	registry, err := session.NewRegistry(cfg, session.DefaultFactory, log, m)
	if err != nil {
		return fmt.Errorf("failed to create session registry: %w", err)
	}
	reports, err := report.NewManagerFromConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create report manager: %w", err)
	}
	dispatcher, err := notify.NewDispatcherFromConfig(cfg, nil, log, m)
	if err != nil {
		return fmt.Errorf("failed to create notification dispatcher: %w", err)
	}
	hist, closeHistory, err := openHistory(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer closeHistory()
	artifacts, err := artifactStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to create artifact store: %w", err)
	}

	runner, err := suite.NewRunner(cfg, suite.Options{
		Registry:   registry,
		Reports:    reports,
		Dispatcher: dispatcher,
		History:    hist,
		Artifacts:  artifacts,
		Metrics:    m,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	summary, err := runner.Run(ctx, suite.Smoke())
	if summary != nil {
		printSummary(summary, runOutput)
	}
	if err != nil {
		return err
	}
	if summary.Failed() {
		return fmt.Errorf("%d test(s) failed, see %s", summary.Counts[report.StatusFail], summary.ReportPath)
	}
	return nil
}

func printSummary(summary *suite.Summary, format string) {
	if format == "json" {
		type outcome struct {
			Name     string `json:"name"`
			Status   string `json:"status"`
			Attempts int    `json:"attempts"`
			Error    string `json:"error,omitempty"`
		}
		out := struct {
			RunID    string    `json:"run_id"`
			Report   string    `json:"report"`
			Notified bool      `json:"notified"`
			Tests    []outcome `json:"tests"`
		}{
			RunID:    summary.RunID.String(),
			Report:   summary.ReportPath,
			Notified: summary.Notified,
			Tests:    []outcome{},
		}
		for _, o := range summary.Outcomes {
			entry := outcome{Name: o.Name, Status: o.Status.String(), Attempts: o.Attempts}
			if o.Err != nil {
				entry.Error = o.Err.Error()
			}
			out.Tests = append(out.Tests, entry)
		}
		printJSON(out)
		return
	}

	rows := make([][]string, 0, len(summary.Outcomes))
	for _, o := range summary.Outcomes {
		rows = append(rows, []string{o.Name, o.Status.String(), strconv.Itoa(o.Attempts)})
	}
	printTable([]string{"TEST", "STATUS", "ATTEMPTS"}, rows)
	printMessage(fmt.Sprintf("\nReport: %s", summary.ReportPath))
}
