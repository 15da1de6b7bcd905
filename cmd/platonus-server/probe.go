package main

import (
	"context"

	"platonus-notifier/internal/components/chrono"
	"platonus-notifier/internal/components/telemetry"
	"platonus-notifier/internal/platonus"
)

const report_server_scheduled_probe = "server.scheduled-probe"

// InitScheduledProbe checks on the portal on the given cron schedule so an
// outage shows up in the logs before a request runs into it.
func InitScheduledProbe(ctx context.Context, schedule, baseUrl string, cron chrono.CronAPI, tel telemetry.API) error {
	prober, err := platonus.NewProber(baseUrl, tel)
	if err != nil {
		return err
	}
	return cron.Cron(schedule, func() {
		report, err := prober.Probe(ctx)
		if err != nil {
			tel.ReportWarning(report_server_scheduled_probe, err)
			return
		}
		tel.ReportDebug("portal reachable", report.Status, report.Url, report.LoginForm)
	})
}
