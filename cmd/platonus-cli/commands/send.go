package commands

import (
	"log/slog"

	"platonus-notifier/internal/browser"
	"platonus-notifier/internal/components/serviceutil"
	"platonus-notifier/internal/components/telemetry"
	"platonus-notifier/internal/platonus"
	"platonus-notifier/internal/service"

	"github.com/spf13/cobra"
)

var sendIin *string
var sendCode *string
var sendJson *bool
var sendHtml *string

func init() {
	sendIin = sendCmd.Flags().String("iin", "", "The IIN of the student, defaults to $PLATONUS_IIN.")
	sendCode = sendCmd.Flags().String("code", "", "The notification code to put in the body.")
	sendJson = sendCmd.Flags().Bool("json", false, "Print the result as JSON (detail page included).")
	sendHtml = sendCmd.Flags().String("html", "", "Write the captured detail page to this file.")
	rootCmd.AddCommand(sendCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send [--iin <iin>] [--code <code>] [--json] [--html <path>]",
	Short: "Runs the notification workflow once with a local browser.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("read config", err)
		}
		if *sendIin != "" {
			cfg.Iin = *sendIin
		}
		err = cfg.ValidateStandalone()
		if err != nil {
			serviceutil.Fatal("validate config", err)
		}

		workflow, err := platonus.NewWorkflow(
			cfg.WorkflowOptions(),
			browser.NewChromeLauncher(cfg.BrowserOptions(), telemetry.SlogAPI{}),
			telemetry.SlogAPI{},
		)
		if err != nil {
			serviceutil.Fatal("init workflow", err)
		}

		slog.Info("sending notification", "iin", cfg.Iin, "credentials", cfg.WorkflowOptions().Credentials)
		result, err := workflow.Run(cmd.Context(), platonus.Request{
			Identifier: cfg.Iin,
			Code:       *sendCode,
		})
		if err != nil {
			serviceutil.Fatal("run workflow", err)
		}

		res := service.NotificationResponse{
			Html: string(result.DetailDocument),
			Iin:  result.SearchIdentifier,
			Fio:  result.DisplayName,
			Row:  result.Fields,
		}
		if result.HasInternalId() {
			res.StudentId = &result.InternalId
		}

		err = writeHtml(*sendHtml, res)
		if err != nil {
			serviceutil.Fatal("write detail page", err)
		}
		err = printResponse(res, *sendJson)
		if err != nil {
			serviceutil.Fatal("print result", err)
		}
	},
}
