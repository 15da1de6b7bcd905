// Package browser owns the headless browser used by a single workflow run.
//
// A Driver wraps exactly one browser and one page. Every wait is bounded by a
// timeout: a wait that elapses fails with ErrElementNotFound and a navigation
// that cannot complete fails with ErrNavigationFailed. A caller that cancels
// its context gets the context error back instead of either sentinel.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	ErrElementNotFound  = errors.New("element not found")
	ErrNavigationFailed = errors.New("navigation failed")
)

// WaitUntil is the condition Navigate waits for after the document starts loading.
type WaitUntil int

const (
	// WaitLoad waits for the document load event.
	WaitLoad WaitUntil = iota
	// WaitNetworkIdle waits for the load event followed by a quiet network window.
	WaitNetworkIdle
)

func (w WaitUntil) String() string {
	switch w {
	case WaitLoad:
		return "load"
	case WaitNetworkIdle:
		return "networkidle"
	}
	return "unknown"
}

// Driver is the set of page primitives the workflow is written against.
//
// A timeout of 0 means the driver's default operation timeout.
//
// note: fault injection point
type Driver interface {
	Navigate(ctx context.Context, url string, until WaitUntil) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error

	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	// Check ticks a checkbox, it does nothing if the box is already ticked.
	Check(ctx context.Context, selector string) error
	// Evaluate runs a javascript expression in the page and discards its result.
	Evaluate(ctx context.Context, expression string) error

	ReadText(ctx context.Context, selector string) (string, error)
	// ReadAttribute returns the value of the attribute and whether it was present.
	ReadAttribute(ctx context.Context, selector, name string) (string, bool, error)
	// Content returns the markup of the current document.
	Content(ctx context.Context) (string, error)

	// Close releases the browser, calling it more than once is a no-op.
	Close() error
}

// Launcher creates a new isolated Driver, one per workflow run.
type Launcher interface {
	Launch(ctx context.Context) (Driver, error)
}
