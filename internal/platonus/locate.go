package platonus

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"platonus-notifier/internal/browser"
	"platonus-notifier/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// locateRecord searches the student listing for the identifier, exactly one
// row must match.
func (w *Workflow) locateRecord(ctx context.Context, session AuthenticatedSession, identifier string) (RecordSummary, error) {
	ctx, span := tracer.Start(ctx, "workflow:locateRecord")
	defer span.End()

	if identifier == "" {
		return RecordSummary{}, ErrMissingIdentifier
	}

	err := session.driver.Navigate(
		ctx,
		SearchURL(w.opts.BaseURL, identifier, w.opts.PageSize),
		browser.WaitNetworkIdle,
	)
	if err != nil {
		return RecordSummary{}, err
	}

	markup, err := session.driver.Content(ctx)
	if err != nil {
		return RecordSummary{}, err
	}

	cells, err := countSearchResults(markup)
	if errors.Is(err, ErrRecordNotFound) && !w.opts.Strict {
		// without strict mode nothing checked the login, so say so
		return RecordSummary{}, fmt.Errorf(
			"%w (the portal shows the same empty search when the service account login was rejected)",
			ErrRecordNotFound,
		)
	}
	if err != nil {
		return RecordSummary{}, err
	}

	return readRecord(ctx, session.driver, cells)
}

// countSearchResults checks the snapshot holds exactly one result row with a
// detail link and returns how many cells that row has.
func countSearchResults(markup string) (int, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return 0, fmt.Errorf("parse search results: %w", err)
	}

	rows := doc.Find(selectorRecordRow)
	switch count := rows.Length(); {
	case count == 0:
		return 0, ErrRecordNotFound
	case count > 1:
		return 0, fmt.Errorf("%w: %d rows", ErrAmbiguousRecord, count)
	}

	if rows.Find(selectorRecordLink).Length() == 0 {
		return 0, fmt.Errorf("%w: result row has no detail link", browser.ErrElementNotFound)
	}
	return rows.ChildrenFiltered("td").Length(), nil
}

func cellSelector(column int) string {
	return fmt.Sprintf("%s > td:nth-child(%d)", selectorRecordRow, column)
}

// readRecord reads the result row from the live page, so the values are the
// rendered text (hidden elements left out) rather than the raw markup.
func readRecord(ctx context.Context, driver browser.Driver, cells int) (RecordSummary, error) {
	name, err := driver.ReadText(ctx, recordLinkSelector)
	if err != nil {
		return RecordSummary{}, err
	}

	reference, _, err := driver.ReadAttribute(ctx, recordLinkSelector, "href")
	if err != nil {
		return RecordSummary{}, err
	}
	if reference == "" {
		reference, _, err = driver.ReadAttribute(ctx, recordLinkSelector, "ng-href")
		if err != nil {
			return RecordSummary{}, err
		}
	}

	fields := make([]string, 0, cells)
	for column := 1; column <= cells; column++ {
		text, err := driver.ReadText(ctx, cellSelector(column))
		if err != nil {
			return RecordSummary{}, err
		}
		fields = append(fields, htmlutil.CleanText(text))
	}

	return RecordSummary{
		DisplayName: htmlutil.CleanText(name),
		InternalId:  parseInternalId(reference),
		Reference:   reference,
		Fields:      fields,
	}, nil
}

// parseInternalId takes the last path segment of a detail reference (or what
// follows a '#' inside it) and returns it if it is entirely numeric.
func parseInternalId(reference string) string {
	if reference == "" {
		return ""
	}
	segments := strings.Split(reference, "/")
	candidate := segments[len(segments)-1]
	if i := strings.LastIndex(candidate, "#"); i >= 0 {
		candidate = candidate[i+1:]
	}
	if candidate == "" {
		return ""
	}
	for _, c := range candidate {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return candidate
}
