package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"platonus-notifier/internal/components/assert"
	"platonus-notifier/internal/components/telemetry"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_session_launch = "session.launch"
	report_session_close  = "session.close"
)

type Options struct {
	// RemoteURL points at the devtools endpoint of an already running browser
	// (ex. the chromedp/headless-shell image). Runs then get their own browser
	// context inside that browser instead of their own process.
	RemoteURL string
	ExecPath  string
	Headless  bool
	UserAgent string

	// DefaultTimeout bounds every operation that is not given an explicit timeout.
	DefaultTimeout time.Duration
	// IdleWindow is how long the network must stay quiet to count as idle.
	IdleWindow time.Duration
}

func DefaultOptions() Options {
	return Options{
		Headless:       true,
		DefaultTimeout: time.Second * 60,
		IdleWindow:     time.Millisecond * 500,
	}
}

type ChromeLauncher struct {
	opts Options
	tel  telemetry.API
}

func NewChromeLauncher(opts Options, tel telemetry.API) ChromeLauncher {
	assert.NotNil(tel, "tel")

	defaults := DefaultOptions()
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = defaults.DefaultTimeout
	}
	if opts.IdleWindow <= 0 {
		opts.IdleWindow = defaults.IdleWindow
	}
	return ChromeLauncher{
		opts: opts,
		tel:  telemetry.NewScopedAPI("browser", tel),
	}
}

// Launch starts a browser whose lifetime is bound to ctx, cancelling ctx tears
// the browser down even if Close is never reached.
func (l ChromeLauncher) Launch(ctx context.Context) (Driver, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if l.opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, l.opts.RemoteURL)
	} else {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		if !l.opts.Headless {
			opts = append(opts, chromedp.Flag("headless", false))
		}
		if l.opts.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
		}
		if l.opts.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(l.opts.UserAgent))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancels := []context.CancelFunc{browserCancel, allocCancel}

	pageCtx := browserCtx
	if l.opts.RemoteURL != "" {
		// a shared remote browser keeps cookies per browser context, so every
		// run gets a fresh one
		err := chromedp.Run(browserCtx)
		if err != nil {
			browserCancel()
			allocCancel()
			l.tel.ReportBroken(report_session_launch, fmt.Errorf("connect: %w", err), l.opts.RemoteURL)
			return nil, fmt.Errorf("connect to browser: %w", err)
		}
		var pageCancel context.CancelFunc
		pageCtx, pageCancel = chromedp.NewContext(browserCtx, chromedp.WithNewBrowserContext())
		cancels = append([]context.CancelFunc{pageCancel}, cancels...)
	}

	s := &Session{
		ctx:     pageCtx,
		cancels: cancels,
		opts:    l.opts,
		idle:    newIdleTracker(l.opts.IdleWindow),
		tel:     l.tel,
	}
	chromedp.ListenTarget(pageCtx, s.idle.observe)

	err := chromedp.Run(pageCtx, network.Enable())
	if err != nil {
		s.Close()
		l.tel.ReportBroken(report_session_launch, fmt.Errorf("start: %w", err))
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return s, nil
}

// Session is a Driver backed by chromedp, it holds one browser page.
type Session struct {
	ctx     context.Context
	cancels []context.CancelFunc
	opts    Options
	idle    *idleTracker
	tel     telemetry.API

	closeOnce sync.Once
	closeErr  error
}

func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		err := chromedp.Cancel(s.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.tel.ReportWarning(report_session_close, err)
			s.closeErr = err
		}
		for _, cancel := range s.cancels {
			cancel()
		}
	})
	return s.closeErr
}

// run executes actions on the page with a deadline of timeout (or the default),
// cancelling ctx aborts the actions early.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout <= 0 {
		timeout = s.opts.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// classify maps a chromedp failure onto the package sentinels, timeouts become
// `sentinel` unless it was the caller that gave up.
func classify(ctx context.Context, err error, sentinel error, what string) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", what, ctxErr)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: timed out", sentinel, what)
	}
	if sentinel == ErrNavigationFailed {
		return fmt.Errorf("%w: %s: %w", sentinel, what, err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *Session) Navigate(ctx context.Context, url string, until WaitUntil) error {
	s.tel.ReportDebug("navigate", url, until.String())
	trace.SpanFromContext(ctx).AddEvent("navigate", trace.WithAttributes(
		attribute.String("url", url),
		attribute.String("until", until.String()),
	))

	err := s.run(ctx, 0, chromedp.Navigate(url))
	if err != nil {
		return classify(ctx, err, ErrNavigationFailed, "navigate")
	}
	if until == WaitNetworkIdle {
		return s.WaitNetworkIdle(ctx, 0)
	}
	return nil
}

func (s *Session) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = s.opts.DefaultTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	err := s.idle.wait(waitCtx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("wait for network idle: %w", ctxErr)
	}
	return fmt.Errorf(
		"%w: network did not go idle, %d requests pending",
		ErrNavigationFailed, s.idle.pending(),
	)
}

func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	err := s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
	return classify(ctx, err, ErrElementNotFound, selector)
}

func (s *Session) Fill(ctx context.Context, selector, value string) error {
	err := s.run(
		ctx, 0,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	return classify(ctx, err, ErrElementNotFound, selector)
}

func (s *Session) Click(ctx context.Context, selector string) error {
	err := s.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery))
	return classify(ctx, err, ErrElementNotFound, selector)
}

func (s *Session) Check(ctx context.Context, selector string) error {
	var checked bool
	err := s.run(
		ctx, 0,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.JavascriptAttribute(selector, "checked", &checked, chromedp.ByQuery),
	)
	if err != nil {
		return classify(ctx, err, ErrElementNotFound, selector)
	}
	if checked {
		return nil
	}
	return s.Click(ctx, selector)
}

func (s *Session) Evaluate(ctx context.Context, expression string) error {
	err := s.run(ctx, 0, chromedp.Evaluate(expression, nil))
	return classify(ctx, err, ErrElementNotFound, "evaluate")
}

func (s *Session) ReadText(ctx context.Context, selector string) (string, error) {
	var text string
	err := s.run(ctx, 0, chromedp.Text(selector, &text, chromedp.ByQuery))
	if err != nil {
		return "", classify(ctx, err, ErrElementNotFound, selector)
	}
	return text, nil
}

func (s *Session) ReadAttribute(ctx context.Context, selector, name string) (string, bool, error) {
	var value string
	var ok bool
	err := s.run(ctx, 0, chromedp.AttributeValue(selector, name, &value, &ok, chromedp.ByQuery))
	if err != nil {
		return "", false, classify(ctx, err, ErrElementNotFound, selector)
	}
	return value, ok, nil
}

// contentScript serializes the whole document, doctype included.
const contentScript = `(() => {
	let markup = '';
	if (document.doctype) {
		markup = new XMLSerializer().serializeToString(document.doctype);
	}
	if (document.documentElement) {
		markup += document.documentElement.outerHTML;
	}
	return markup;
})()`

func (s *Session) Content(ctx context.Context) (string, error) {
	var markup string
	err := s.run(ctx, 0, chromedp.Evaluate(contentScript, &markup))
	if err != nil {
		return "", classify(ctx, err, ErrElementNotFound, "document")
	}
	return markup, nil
}
