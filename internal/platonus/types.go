package platonus

import (
	"platonus-notifier/internal/browser"
)

// Request is the input of a single run.
type Request struct {
	// Identifier is the external unique identifier (IIN) the record is searched by.
	Identifier string
	// Code is embedded in the notification body, empty means absent.
	Code string
}

// AuthenticatedSession is a browser driver that went through the login step.
type AuthenticatedSession struct {
	driver browser.Driver
}

// RecordSummary is the single search result row of a record.
type RecordSummary struct {
	DisplayName string
	// InternalId is the portal's own id of the record, empty when the detail
	// reference did not end in a numeric segment.
	InternalId string
	// Reference is the raw detail page reference the internal id was parsed from.
	Reference string
	// Fields holds the text of every cell of the row, left to right.
	Fields []string
}

func (r RecordSummary) HasInternalId() bool {
	return r.InternalId != ""
}

// DetailDocument is the markup of the record's detail view at capture time.
type DetailDocument string

type SendOutcome struct {
	RecipientId string
	// Confirmed is only set in strict mode, once the final send settled.
	Confirmed bool
}

// Result is everything a successful run produces.
type Result struct {
	DetailDocument   DetailDocument
	SearchIdentifier string
	DisplayName      string
	InternalId       string
	Fields           []string
}

func (r Result) HasInternalId() bool {
	return r.InternalId != ""
}
