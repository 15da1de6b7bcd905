package platonus

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const DefaultBaseURL = "https://platonus.tau-edu.kz"

// Credentials of the staff account the workflow signs in with.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) String() string {
	return fmt.Sprintf("{%s <redacted>}", c.Username)
}

func (c Credentials) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// Timeouts of individual steps, 0 falls back to the browser's default timeout.
type Timeouts struct {
	LoginForm    time.Duration
	DetailMarker time.Duration
	Compose      time.Duration
	Recipient    time.Duration
	FinalSend    time.Duration
	// Confirm bounds the network idle waits strict mode adds after each send.
	Confirm time.Duration
}

type Message struct {
	Subject string
	// Body is the caption of the notification, the notification code is appended to it.
	Body string
}

type Options struct {
	BaseURL     string
	Credentials Credentials
	// PageSize is the page size requested from the record search.
	PageSize int

	// Strict adds confirmation waits to the steps the portal does not confirm
	// on its own: login success and both send clicks.
	Strict bool
	// Preflight probes the portal over plain HTTP before a browser is launched.
	Preflight bool

	Timeouts Timeouts
	Message  Message
}

func DefaultOptions() Options {
	return Options{
		BaseURL:  DefaultBaseURL,
		PageSize: 30,
		Timeouts: Timeouts{
			DetailMarker: time.Second * 5,
			Compose:      time.Second * 10,
			Recipient:    time.Second * 10,
			FinalSend:    time.Second * 10,
		},
		Message: Message{
			Subject: "Test Notification",
			Body:    "Test Notification",
		},
	}
}

// Validate fails with ErrMissingConfiguration when a required value is absent.
func (o Options) Validate() error {
	missing := []string{}
	if o.Credentials.Username == "" {
		missing = append(missing, "username")
	}
	if o.Credentials.Password == "" {
		missing = append(missing, "password")
	}
	if o.BaseURL == "" {
		missing = append(missing, "base url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfiguration, strings.Join(missing, ", "))
	}
	if o.PageSize <= 0 {
		return fmt.Errorf("%w: page size must be positive, got %d", ErrMissingConfiguration, o.PageSize)
	}
	return nil
}
