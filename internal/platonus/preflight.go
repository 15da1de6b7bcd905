package platonus

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"platonus-notifier/internal/browser"
	"platonus-notifier/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Prober checks the portal is reachable over plain HTTP, which is far cheaper
// than finding out through a browser launch and a 60 second navigation timeout.
type Prober struct {
	http *resty.Client
	tel  telemetry.API
}

type ProbeReport struct {
	Status int
	// Url is where the entry page redirected to.
	Url string
	// LoginForm is whether the login fields are in the served markup.
	LoginForm bool
}

func NewProber(baseUrl string, tel telemetry.API) (*Prober, error) {
	parsedBaseUrl, err := url.Parse(baseUrl)
	if err != nil {
		return nil, fmt.Errorf("%w: base url: %w", ErrMissingConfiguration, err)
	}

	client := resty.New()
	client.SetBaseURL(baseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	client.SetTimeout(time.Second * 30)

	// 1 request per second, concurrent runs should not hammer the portal
	rateLimiter := rate.NewLimiter(1, 1)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, tel)

	return &Prober{http: client, tel: tel}, nil
}

// Probe fetches the entry page, it fails with browser.ErrNavigationFailed if
// the portal cannot be reached or answers with a server error.
func (p *Prober) Probe(ctx context.Context) (ProbeReport, error) {
	ctx, span := tracer.Start(ctx, "prober:Probe")
	defer span.End()

	res, err := p.http.R().
		SetContext(ctx).
		Get(entryPath)
	if err != nil {
		return ProbeReport{}, fmt.Errorf("%w: probe portal: %w", browser.ErrNavigationFailed, err)
	}

	report := ProbeReport{Status: res.StatusCode()}
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		report.Url = res.RawResponse.Request.URL.String()
	}
	if res.StatusCode() >= 500 {
		return report, fmt.Errorf("%w: probe portal: status %s", browser.ErrNavigationFailed, res.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		p.tel.ReportWarning(report_preflight_probe, fmt.Errorf("parse entry page: %w", err))
		return report, nil
	}
	report.LoginForm = doc.Find(selectorLoginInput).Length() > 0
	if !report.LoginForm {
		p.tel.ReportWarning(report_preflight_probe, "entry page has no login form", report.Url)
	}
	return report, nil
}
