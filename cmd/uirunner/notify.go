package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hairizuanbinnoorazman/ui-automation-runner/notify"
)

var notifyReport string

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Email the newest report",
	Long: `Emails a report to the configured recipients. Without --report the most
recently modified report in the report folder is sent.`,
	RunE: runNotify,
}

func init() {
	notifyCmd.Flags().StringVarP(&notifyReport, "report", "r", "", "report file to send instead of the newest one")
	rootCmd.AddCommand(notifyCmd)
}

func runNotify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	dispatcher, err := notify.NewDispatcherFromConfig(cfg, nil, log, nil)
	if err != nil {
		return fmt.Errorf("failed to create notification dispatcher: %w", err)
	}

	var sent bool
	if notifyReport != "" {
		sent, err = dispatcher.SendEmailWithReport(ctx, notifyReport)
	} else {
		folder, ferr := cfg.ReportFolder()
		if ferr != nil {
			return ferr
		}
		sent, err = dispatcher.NotifyLatest(ctx, folder)
	}
	if err != nil {
		return err
	}

	if !sent {
		printMessage("Email notifications are disabled")
		return nil
	}
	printMessage("Report sent")
	return nil
}
