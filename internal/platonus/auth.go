package platonus

import (
	"context"
	"fmt"
	"strings"

	"platonus-notifier/internal/browser"

	"github.com/PuerkitoBio/goquery"
)

// authenticate signs in through the login form the entry page redirects to.
//
// Outside of strict mode a quiet network after submitting is taken as success,
// a rejected login only shows up later (usually as an empty record search).
func (w *Workflow) authenticate(ctx context.Context, driver browser.Driver, creds Credentials) (AuthenticatedSession, error) {
	ctx, span := tracer.Start(ctx, "workflow:authenticate")
	defer span.End()

	err := driver.Navigate(ctx, joinPath(w.opts.BaseURL, entryPath), browser.WaitLoad)
	if err != nil {
		return AuthenticatedSession{}, err
	}

	for _, selector := range []string{selectorLoginInput, selectorPasswordInput} {
		err = driver.WaitFor(ctx, selector, w.opts.Timeouts.LoginForm)
		if err != nil {
			return AuthenticatedSession{}, labelled(ErrLoginFormNotFound, err)
		}
	}
	err = driver.Fill(ctx, selectorLoginInput, creds.Username)
	if err != nil {
		return AuthenticatedSession{}, labelled(ErrLoginFormNotFound, err)
	}
	err = driver.Fill(ctx, selectorPasswordInput, creds.Password)
	if err != nil {
		return AuthenticatedSession{}, labelled(ErrLoginFormNotFound, err)
	}
	err = driver.Click(ctx, selectorLoginSubmit)
	if err != nil {
		return AuthenticatedSession{}, labelled(ErrLoginFormNotFound, err)
	}

	err = driver.WaitNetworkIdle(ctx, 0)
	if err != nil {
		return AuthenticatedSession{}, err
	}

	if w.opts.Strict {
		markup, err := driver.Content(ctx)
		if err != nil {
			return AuthenticatedSession{}, err
		}
		stillOnLogin, err := hasLoginForm(markup)
		if err != nil {
			return AuthenticatedSession{}, err
		}
		if stillOnLogin {
			return AuthenticatedSession{}, ErrLoginRejected
		}
	}

	return AuthenticatedSession{driver: driver}, nil
}

func hasLoginForm(markup string) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return false, fmt.Errorf("parse document: %w", err)
	}
	return doc.Find(selectorLoginInput).Length() > 0, nil
}
