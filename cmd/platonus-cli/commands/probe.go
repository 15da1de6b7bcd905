package commands

import (
	"platonus-notifier/internal/components/serviceutil"
	"platonus-notifier/internal/components/telemetry"
	"platonus-notifier/internal/platonus"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Checks the portal is reachable and serves its login page, without a browser.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			serviceutil.Fatal("read config", err)
		}

		prober, err := platonus.NewProber(cfg.Portal.BaseUrl, telemetry.SlogAPI{})
		if err != nil {
			serviceutil.Fatal("init prober", err)
		}
		report, err := prober.Probe(cmd.Context())
		if err != nil {
			serviceutil.Fatal("probe portal", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Portal", "Status", "Landed on", "Login form"})
		t.AppendRow(table.Row{cfg.Portal.BaseUrl, report.Status, report.Url, report.LoginForm})
		t.Render()
	},
}
