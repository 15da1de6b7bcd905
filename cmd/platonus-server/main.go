package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"

	"platonus-notifier/internal/browser"
	"platonus-notifier/internal/components/chrono"
	"platonus-notifier/internal/components/serviceutil"
	"platonus-notifier/internal/components/telemetry"
	"platonus-notifier/internal/config"
	"platonus-notifier/internal/platonus"
	"platonus-notifier/internal/service"

	"connectrpc.com/connect"
	"golang.org/x/sync/errgroup"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	configPath := flag.String("config", "config.json5", "The config file to read, <name>.local.<ext> overrides it.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	telemetry.InitSlog(*verbose)
	if *verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	err = cfg.Validate()
	if err != nil {
		serviceutil.Fatal("validate config", err)
	}

	tel, err := telemetry.Setup(ctx, "platonus-server", cfg.Telemetry)
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	telemetry.InstrumentPerfStats(ctx)

	workflow, err := platonus.NewWorkflow(
		cfg.WorkflowOptions(),
		browser.NewChromeLauncher(cfg.BrowserOptions(), telemetry.SlogAPI{}),
		telemetry.SlogAPI{},
	)
	if err != nil {
		serviceutil.Fatal("init workflow", err)
	}

	if cfg.Server.ProbeSchedule != "" {
		cron := chrono.NewStandardCron(telemetry.SlogAPI{})
		defer cron.Stop()
		err = InitScheduledProbe(ctx, cfg.Server.ProbeSchedule, cfg.Portal.BaseUrl, cron, telemetry.SlogAPI{})
		if err != nil {
			serviceutil.Fatal("init scheduled probe", err)
		}
	}

	interceptors := []connect.Interceptor{serviceutil.NewConnectOtelInterceptor()}
	if cfg.Server.Token != "" {
		interceptors = append(interceptors, service.NewTokenInterceptor(cfg.Server.Token))
	}

	mux := http.NewServeMux()
	mux.Handle(service.NewHandler(
		service.NewNotificationService(workflow, telemetry.SlogAPI{}),
		connect.WithInterceptors(interceptors...),
	))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return serviceutil.ServeHttp(ctx, cfg.Server.Port, mux)
	})
	group.Go(func() error {
		<-ctx.Done()
		return tel.Shutdown(context.Background())
	})
	err = group.Wait()
	if err != nil {
		serviceutil.Fatal("serve", err)
	}
}
