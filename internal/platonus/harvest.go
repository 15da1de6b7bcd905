package platonus

import (
	"context"
	"errors"

	"platonus-notifier/internal/browser"
)

const recordLinkSelector = selectorRecordRow + " " + selectorRecordLink

// harvestDetail opens the located record and captures its markup. The course
// selector is the last widget the detail view renders, if it does not show up
// in time the document is captured as is.
func (w *Workflow) harvestDetail(ctx context.Context, session AuthenticatedSession, record RecordSummary) (DetailDocument, error) {
	ctx, span := tracer.Start(ctx, "workflow:harvestDetail")
	defer span.End()

	err := session.driver.Click(ctx, recordLinkSelector)
	if err != nil {
		return "", err
	}
	err = session.driver.WaitNetworkIdle(ctx, 0)
	if err != nil {
		return "", err
	}

	err = session.driver.WaitFor(ctx, selectorDetailMarker, w.opts.Timeouts.DetailMarker)
	if errors.Is(err, browser.ErrElementNotFound) {
		w.tel.ReportWarning(
			report_workflow_harvest_detail,
			"layout marker did not appear, capturing the current document",
			record.InternalId,
		)
	} else if err != nil {
		return "", err
	}

	markup, err := session.driver.Content(ctx)
	if err != nil {
		return "", err
	}
	return DetailDocument(markup), nil
}
