// Package platonus automates sending an in-portal notification to a student of
// the Platonus portal: sign in, find the student by IIN, capture their detail
// page, then compose and deliver the notification to them.
package platonus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"platonus-notifier/internal/browser"
	"platonus-notifier/internal/components/assert"
	"platonus-notifier/internal/components/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_workflow_run            = "workflow.run"
	report_workflow_close_session  = "workflow.close-session"
	report_workflow_harvest_detail = "workflow.harvest-detail"
	report_preflight_probe         = "preflight.probe"
)

var tracer = otel.Tracer("platonus-notifier.internal.platonus")
var meter = otel.Meter("platonus-notifier.internal.platonus")
var runCounter, _ = meter.Int64Counter("platonus.runs")

// Workflow runs the notification workflow, one browser session per run.
// It holds no per-run state, so concurrent runs are independent of each other.
type Workflow struct {
	opts     Options
	launcher browser.Launcher
	prober   *Prober
	tel      telemetry.API
}

// NewWorkflow fails with ErrMissingConfiguration before anything is launched
// if opts lack a required value.
func NewWorkflow(opts Options, launcher browser.Launcher, tel telemetry.API) (*Workflow, error) {
	assert.NotNil(launcher, "launcher")
	assert.NotNil(tel, "tel")

	err := opts.Validate()
	if err != nil {
		return nil, err
	}

	tel = telemetry.NewScopedAPI("platonus", tel)
	w := &Workflow{
		opts:     opts,
		launcher: launcher,
		tel:      tel,
	}
	if opts.Preflight {
		w.prober, err = NewProber(opts.BaseURL, tel)
		if err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Run executes the whole workflow for one request. The browser session it
// launches is closed exactly once on every path out of Run, panics included
// (those come back as ErrUnexpected).
func (w *Workflow) Run(ctx context.Context, req Request) (result Result, err error) {
	runId := uuid.NewString()

	ctx, span := tracer.Start(ctx, "workflow:Run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runId), attribute.Bool("strict", w.opts.Strict))

	defer func() {
		outcome := "ok"
		switch {
		case err == nil:
			w.tel.ReportDebug("run finished", runId)
		case IsWorkflowError(err):
			outcome = "workflow_error"
			w.tel.ReportWarning(report_workflow_run, err, runId)
		case errors.Is(err, context.Canceled):
			outcome = "canceled"
			w.tel.ReportWarning(report_workflow_run, err, runId)
		default:
			outcome = "unexpected"
			w.tel.ReportBroken(report_workflow_run, err, runId)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		runCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}()

	identifier := strings.TrimSpace(req.Identifier)
	if identifier == "" {
		return Result{}, ErrMissingIdentifier
	}

	if w.prober != nil {
		_, err := w.prober.Probe(ctx)
		if err != nil {
			return Result{}, err
		}
	}

	driver, err := w.launcher.Launch(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: launch browser: %w", ErrUnexpected, err)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			result = Result{}
			err = fmt.Errorf("%w: panic: %v", ErrUnexpected, recovered)
		}
		closeErr := driver.Close()
		if closeErr != nil {
			w.tel.ReportWarning(report_workflow_close_session, closeErr, runId)
		}
	}()

	w.tel.ReportDebug("run started", runId)

	session, err := w.authenticate(ctx, driver, w.opts.Credentials)
	if err != nil {
		return Result{}, err
	}
	record, err := w.locateRecord(ctx, session, identifier)
	if err != nil {
		return Result{}, err
	}
	detail, err := w.harvestDetail(ctx, session, record)
	if err != nil {
		return Result{}, err
	}
	_, err = w.sendNotification(ctx, session, record, req.Code)
	if err != nil {
		return Result{}, err
	}

	return Result{
		DetailDocument:   detail,
		SearchIdentifier: identifier,
		DisplayName:      record.DisplayName,
		InternalId:       record.InternalId,
		Fields:           record.Fields,
	}, nil
}
