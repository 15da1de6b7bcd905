package platonus

import (
	"errors"
	"fmt"

	"platonus-notifier/internal/browser"
)

var (
	ErrMissingIdentifier    = errors.New("search identifier was not provided, the record cannot be searched")
	ErrMissingConfiguration = errors.New("missing configuration")
	ErrLoginFormNotFound    = errors.New("could not find the username/password fields on the login page")
	ErrLoginRejected        = errors.New("the portal did not accept the service account login")
	ErrRecordNotFound       = errors.New("no record matches the search identifier")
	ErrAmbiguousRecord      = errors.New("more than one record matches the search identifier")
	ErrCompositionFailed    = errors.New("could not fill in the notification")
	ErrRecipientNotFound    = errors.New("could not select the notification recipient")
	ErrSendFailed           = errors.New("could not send the notification")
	ErrUnexpected           = errors.New("unexpected failure")
)

// errors caused by input, configuration, the portal rejecting us or the portal's
// pages not being in the state the workflow expects.
var workflowErrors = []error{
	ErrMissingIdentifier,
	ErrMissingConfiguration,
	ErrLoginFormNotFound,
	ErrLoginRejected,
	ErrRecordNotFound,
	ErrAmbiguousRecord,
	ErrCompositionFailed,
	ErrRecipientNotFound,
	ErrSendFailed,
}

// IsWorkflowError reports whether err is something the caller can act on (fix
// the input, the configuration or the account) as opposed to an unexpected fault.
func IsWorkflowError(err error) bool {
	if err == nil || errors.Is(err, ErrUnexpected) {
		return false
	}
	for _, target := range workflowErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// labelled attaches the step label to element timeouts, other errors (like a
// cancelled context) pass through untouched.
func labelled(label, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, browser.ErrElementNotFound) {
		return fmt.Errorf("%w: %w", label, err)
	}
	return err
}
