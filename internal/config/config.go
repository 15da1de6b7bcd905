// Package config loads the process configuration: config.json5, its .local
// override, then the PLATONUS_* environment variables on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"platonus-notifier/internal/browser"
	"platonus-notifier/internal/components/configutil"
	"platonus-notifier/internal/components/telemetry"
	"platonus-notifier/internal/platonus"
)

const (
	EnvUsername   = "PLATONUS_USERNAME"
	EnvPassword   = "PLATONUS_PASSWORD"
	EnvIin        = "PLATONUS_IIN"
	EnvBaseUrl    = "PLATONUS_BASE_URL"
	EnvBrowserUrl = "PLATONUS_BROWSER_URL"
	EnvStrict     = "PLATONUS_STRICT"
)

type PortalConfig struct {
	BaseUrl  string `json:"base_url"`
	Username string `json:"username"`
	Password string `json:"password"`
	PageSize int    `json:"page_size"`
}

type BrowserConfig struct {
	// Url is the devtools endpoint of a running browser, a local chrome is
	// launched when it is empty.
	Url       string `json:"url"`
	ExecPath  string `json:"exec_path"`
	Headful   bool   `json:"headful"`
	UserAgent string `json:"user_agent"`
}

// TimeoutsConfig is in milliseconds, 0 means the default.
type TimeoutsConfig struct {
	DefaultMs      int `json:"default_ms"`
	LoginFormMs    int `json:"login_form_ms"`
	DetailMarkerMs int `json:"detail_marker_ms"`
	ComposeMs      int `json:"compose_ms"`
	RecipientMs    int `json:"recipient_ms"`
	FinalSendMs    int `json:"final_send_ms"`
	ConfirmMs      int `json:"confirm_ms"`
	IdleWindowMs   int `json:"idle_window_ms"`
}

type MessageConfig struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type ServerConfig struct {
	Port int `json:"port"`
	// Token, when set, is required as a bearer token on every request.
	Token string `json:"token"`
	// ProbeSchedule is a cron spec (ex. "@every 5m") on which the server
	// probes the portal in the background, empty disables it.
	ProbeSchedule string `json:"probe_schedule"`
}

type Config struct {
	Portal    PortalConfig     `json:"portal"`
	Browser   BrowserConfig    `json:"browser"`
	Timeouts  TimeoutsConfig   `json:"timeouts"`
	Message   MessageConfig    `json:"message"`
	Strict    bool             `json:"strict"`
	Preflight bool             `json:"preflight"`
	Server    ServerConfig     `json:"server"`
	Telemetry telemetry.Config `json:"telemetry"`

	// Iin is the target of a standalone run, it is only read from the environment.
	Iin string `json:"-"`
}

// Load reads the config file at path (which may not exist when the environment
// carries everything) and applies the environment overlay and defaults.
func Load(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	configutil.OverlayString(&cfg.Portal.Username, EnvUsername)
	configutil.OverlayString(&cfg.Portal.Password, EnvPassword)
	configutil.OverlayString(&cfg.Portal.BaseUrl, EnvBaseUrl)
	configutil.OverlayString(&cfg.Browser.Url, EnvBrowserUrl)
	configutil.OverlayString(&cfg.Iin, EnvIin)
	err = configutil.OverlayBool(&cfg.Strict, EnvStrict)
	if err != nil {
		return Config{}, err
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	setDefault := func(target *int, value int) {
		if *target == 0 {
			*target = value
		}
	}

	if c.Portal.BaseUrl == "" {
		c.Portal.BaseUrl = platonus.DefaultBaseURL
	}
	setDefault(&c.Portal.PageSize, 30)

	setDefault(&c.Timeouts.DefaultMs, 60000)
	setDefault(&c.Timeouts.DetailMarkerMs, 5000)
	setDefault(&c.Timeouts.ComposeMs, 10000)
	setDefault(&c.Timeouts.RecipientMs, 10000)
	setDefault(&c.Timeouts.FinalSendMs, 10000)
	setDefault(&c.Timeouts.IdleWindowMs, 500)

	if c.Message.Subject == "" {
		c.Message.Subject = "Test Notification"
	}
	if c.Message.Body == "" {
		c.Message.Body = "Test Notification"
	}

	setDefault(&c.Server.Port, 8000)
}

func (c Config) missing(standalone bool) []string {
	missing := []string{}
	if c.Portal.Username == "" {
		missing = append(missing, EnvUsername)
	}
	if c.Portal.Password == "" {
		missing = append(missing, EnvPassword)
	}
	if standalone && strings.TrimSpace(c.Iin) == "" {
		missing = append(missing, EnvIin)
	}
	return missing
}

// Validate fails with platonus.ErrMissingConfiguration naming every required
// variable that has no value.
func (c Config) Validate() error {
	missing := c.missing(false)
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s", platonus.ErrMissingConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// ValidateStandalone is Validate for a run without an inbound request, which
// also needs the target identifier.
func (c Config) ValidateStandalone() error {
	missing := c.missing(true)
	if len(missing) > 0 {
		return fmt.Errorf("%w: set %s", platonus.ErrMissingConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func (c Config) WorkflowOptions() platonus.Options {
	return platonus.Options{
		BaseURL: c.Portal.BaseUrl,
		Credentials: platonus.Credentials{
			Username: c.Portal.Username,
			Password: c.Portal.Password,
		},
		PageSize:  c.Portal.PageSize,
		Strict:    c.Strict,
		Preflight: c.Preflight,
		Timeouts: platonus.Timeouts{
			LoginForm:    millis(c.Timeouts.LoginFormMs),
			DetailMarker: millis(c.Timeouts.DetailMarkerMs),
			Compose:      millis(c.Timeouts.ComposeMs),
			Recipient:    millis(c.Timeouts.RecipientMs),
			FinalSend:    millis(c.Timeouts.FinalSendMs),
			Confirm:      millis(c.Timeouts.ConfirmMs),
		},
		Message: platonus.Message{
			Subject: c.Message.Subject,
			Body:    c.Message.Body,
		},
	}
}

func (c Config) BrowserOptions() browser.Options {
	return browser.Options{
		RemoteURL:      c.Browser.Url,
		ExecPath:       c.Browser.ExecPath,
		Headless:       !c.Browser.Headful,
		UserAgent:      c.Browser.UserAgent,
		DefaultTimeout: millis(c.Timeouts.DefaultMs),
		IdleWindow:     millis(c.Timeouts.IdleWindowMs),
	}
}
