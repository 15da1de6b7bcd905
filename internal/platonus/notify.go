package platonus

import (
	"context"
	"fmt"
	"time"

	"platonus-notifier/internal/browser"
)

// sendNotification composes the notification and delivers it to the record.
//
// The portal sends in two rounds: the first send button submits the draft and
// opens the recipient picker, the second one delivers to the ticked recipients.
// The recipient is ticked by internal id since display names are not unique.
func (w *Workflow) sendNotification(ctx context.Context, session AuthenticatedSession, record RecordSummary, code string) (SendOutcome, error) {
	ctx, span := tracer.Start(ctx, "workflow:sendNotification")
	defer span.End()

	// without an id there is nothing to tick in the picker, fail before a
	// draft is left behind
	if !record.HasInternalId() {
		return SendOutcome{}, fmt.Errorf(
			"%w: the record's detail reference %q has no numeric id",
			ErrRecipientNotFound, record.Reference,
		)
	}

	driver := session.driver

	err := driver.Navigate(ctx, joinPath(w.opts.BaseURL, composePath), browser.WaitLoad)
	if err != nil {
		return SendOutcome{}, err
	}
	err = w.compose(ctx, driver, composeBody(w.opts.Message.Body, code))
	if err != nil {
		return SendOutcome{}, err
	}

	err = w.clickSend(ctx, driver, 0)
	if err != nil {
		return SendOutcome{}, err
	}

	err = driver.WaitFor(ctx, selectorRecipientSearch, 0)
	if err != nil {
		return SendOutcome{}, labelled(ErrSendFailed, err)
	}
	err = driver.Fill(ctx, selectorRecipientSearch, record.DisplayName)
	if err != nil {
		return SendOutcome{}, labelled(ErrSendFailed, err)
	}
	err = driver.Click(ctx, selectorRecipientFind)
	if err != nil {
		return SendOutcome{}, labelled(ErrSendFailed, err)
	}

	recipient := recipientSelector(record.InternalId)
	err = driver.WaitFor(ctx, recipient, w.opts.Timeouts.Recipient)
	if err != nil {
		return SendOutcome{}, labelled(ErrRecipientNotFound, err)
	}
	err = driver.Check(ctx, recipient)
	if err != nil {
		return SendOutcome{}, labelled(ErrRecipientNotFound, err)
	}

	err = w.clickSend(ctx, driver, w.opts.Timeouts.FinalSend)
	if err != nil {
		return SendOutcome{}, err
	}

	return SendOutcome{
		RecipientId: record.InternalId,
		Confirmed:   w.opts.Strict,
	}, nil
}

func (w *Workflow) compose(ctx context.Context, driver browser.Driver, body string) error {
	err := driver.WaitFor(ctx, selectorSubject, w.opts.Timeouts.Compose)
	if err != nil {
		return labelled(ErrCompositionFailed, err)
	}
	err = driver.Fill(ctx, selectorSubject, w.opts.Message.Subject)
	if err != nil {
		return labelled(ErrCompositionFailed, err)
	}

	err = driver.WaitFor(ctx, selectorEditor, 0)
	if err != nil {
		return labelled(ErrCompositionFailed, err)
	}
	// the editor keeps its own model of the content, so it is set through the
	// editor api instead of typing into the contenteditable
	err = driver.Evaluate(ctx, editorScript(body))
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: set editor content: %w", ErrCompositionFailed, err)
	}
	return nil
}

// clickSend presses the send button, in strict mode it also waits for the
// requests the click triggers to settle.
func (w *Workflow) clickSend(ctx context.Context, driver browser.Driver, timeout time.Duration) error {
	err := driver.WaitFor(ctx, selectorSend, timeout)
	if err != nil {
		return labelled(ErrSendFailed, err)
	}
	err = driver.Click(ctx, selectorSend)
	if err != nil {
		return labelled(ErrSendFailed, err)
	}

	if !w.opts.Strict {
		return nil
	}
	err = driver.WaitNetworkIdle(ctx, w.opts.Timeouts.Confirm)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fmt.Errorf("%w: send was not confirmed: %w", ErrSendFailed, err)
	}
	return nil
}
