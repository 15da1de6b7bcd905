package commands

import (
	"net/http"

	"platonus-notifier/internal/components/serviceutil"
	"platonus-notifier/internal/service"

	"github.com/spf13/cobra"
)

var requestServer *string
var requestToken *string
var requestIin *string
var requestCode *string
var requestJson *bool
var requestHtml *string

func init() {
	requestServer = requestCmd.Flags().String("server", "http://localhost:8000", "The base url of a running platonus-server.")
	requestToken = requestCmd.Flags().String("token", "", "The bearer token the server expects, if any.")
	requestIin = requestCmd.Flags().String("iin", "", "The IIN of the student.")
	requestCode = requestCmd.Flags().String("code", "", "The notification code to put in the body.")
	requestJson = requestCmd.Flags().Bool("json", false, "Print the response as JSON (detail page included).")
	requestHtml = requestCmd.Flags().String("html", "", "Write the returned detail page to this file.")
	rootCmd.AddCommand(requestCmd)
}

var requestCmd = &cobra.Command{
	Use:   "request --iin <iin> [--code <code>] [--server <url>] [--token <token>]",
	Short: "Asks a running platonus-server to send a notification.",
	Run: func(cmd *cobra.Command, args []string) {
		client := service.NewClient(http.DefaultClient, *requestServer, *requestToken)

		msg := service.NotificationRequest{}
		if *requestIin != "" {
			msg.Iin = requestIin
		}
		if *requestCode != "" {
			msg.Code = requestCode
		}

		res, err := client.RequestNotification(cmd.Context(), msg)
		if err != nil {
			serviceutil.Fatal("request notification", err)
		}

		err = writeHtml(*requestHtml, res)
		if err != nil {
			serviceutil.Fatal("write detail page", err)
		}
		err = printResponse(res, *requestJson)
		if err != nil {
			serviceutil.Fatal("print response", err)
		}
	},
}
