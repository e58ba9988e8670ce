// Package browser drives WhatsApp Web in a remote-controlled Chrome.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"

	"github.com/whatsapp-automation/broadcaster/internal/delivery"
	"github.com/whatsapp-automation/broadcaster/internal/fingerprint"
)

// HomeURL is the WhatsApp Web landing page used for the initial login.
const HomeURL = "https://web.whatsapp.com/"

// ErrLoginTimeout is returned when nobody scans the login code in time.
var ErrLoginTimeout = errors.New("login not completed in time")

// Config controls how Chrome is started and how the page is found.
type Config struct {
	Bin          string
	ControlURL   string
	Headless     bool
	UserDataDir  string
	LoginTimeout time.Duration
	PollInterval time.Duration

	ProxyServer string
	ProxyUser   string
	ProxyPass   string

	Profile   *fingerprint.Profile
	Selectors Selectors
}

// DefaultConfig returns a visible Chrome with a persistent profile directory.
func DefaultConfig() Config {
	return Config{
		UserDataDir:  "./chrome-data",
		LoginTimeout: 60 * time.Second,
		PollInterval: 2 * time.Second,
		Selectors:    DefaultSelectors(),
	}
}

var _ delivery.Page = (*Session)(nil)

// Session is one Chrome tab on WhatsApp Web.
type Session struct {
	cfg      Config
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

// Launch starts (or attaches to) Chrome and opens a tab. On failure
// everything already started is torn down.
func Launch(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Selectors == (Selectors{}) {
		cfg.Selectors = DefaultSelectors()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}

	s := &Session{cfg: cfg}
	controlURL := cfg.ControlURL
	if controlURL == "" {
		l := launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		if cfg.UserDataDir != "" {
			l = l.UserDataDir(cfg.UserDataDir)
		}
		if cfg.ProxyServer != "" {
			l = l.Proxy(cfg.ProxyServer)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		s.launcher = l
		controlURL = u
	}

	s.browser = rod.New().ControlURL(controlURL).Context(ctx)
	if err := s.browser.Connect(); err != nil {
		s.Close()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	if cfg.ProxyUser != "" {
		wait := s.browser.HandleAuth(cfg.ProxyUser, cfg.ProxyPass)
		go func() {
			if err := wait(); err != nil && ctx.Err() == nil {
				logrus.Warnf("[Browser] Proxy auth failed: %v", err)
			}
		}()
	}

	page, err := s.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	s.page = page

	if cfg.Profile != nil {
		s.applyProfile(*cfg.Profile)
	}
	return s, nil
}

func (s *Session) applyProfile(p fingerprint.Profile) {
	if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      p.UserAgent,
		AcceptLanguage: p.Language,
	}); err != nil {
		logrus.Warnf("[Browser] Failed to set user agent: %v", err)
	}
	if err := (proto.EmulationSetTimezoneOverride{TimezoneID: p.Timezone}).Call(s.page); err != nil {
		logrus.Warnf("[Browser] Failed to set timezone: %v", err)
	}
	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             p.ViewportWidth,
		Height:            p.ViewportHeight,
		DeviceScaleFactor: 1.0,
	}); err != nil {
		logrus.Warnf("[Browser] Failed to set viewport: %v", err)
	}
	logrus.Infof("[Browser] Profile %s applied (%s, %s)", p.ID, p.Country, p.Timezone)
}

// WaitLogin opens WhatsApp Web and waits for the logged-in landmark, calling
// onCode whenever a new login QR payload shows up.
func (s *Session) WaitLogin(ctx context.Context, onCode func(string)) error {
	if err := s.Open(ctx, HomeURL); err != nil {
		return err
	}

	wctx := ctx
	if s.cfg.LoginTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, s.cfg.LoginTimeout)
		defer cancel()
	}

	lastCode := ""
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		snap, err := s.snapshot(wctx)
		if err == nil {
			if snap.LoggedIn {
				logrus.Info("[Browser] WhatsApp Web is logged in")
				return nil
			}
			if snap.LoginCode != "" && snap.LoginCode != lastCode {
				lastCode = snap.LoginCode
				if onCode != nil {
					onCode(snap.LoginCode)
				}
			}
		}

		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("after %v: %w", s.cfg.LoginTimeout, ErrLoginTimeout)
		case <-ticker.C:
		}
	}
}

// Open navigates the tab to url.
func (s *Session) Open(ctx context.Context, url string) error {
	if err := s.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	return nil
}

// WaitCompose waits up to timeout for the message box.
func (s *Session) WaitCompose(ctx context.Context, timeout time.Duration) (bool, error) {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := s.page.Context(wctx).Element(s.cfg.Selectors.ComposeBox); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Submit presses Enter in the message box.
func (s *Session) Submit(ctx context.Context) error {
	el, err := s.page.Context(ctx).Element(s.cfg.Selectors.ComposeBox)
	if err != nil {
		return fmt.Errorf("find message box: %w", err)
	}
	if err := el.Type(input.Enter); err != nil {
		return fmt.Errorf("press enter: %w", err)
	}
	return nil
}

// InvalidNumberShown reports whether the invalid number popup is up.
func (s *Session) InvalidNumberShown(ctx context.Context) (bool, error) {
	snap, err := s.snapshot(ctx)
	return snap.InvalidNumber, err
}

// DismissInvalid clicks the popup's OK button.
func (s *Session) DismissInvalid(ctx context.Context) error {
	has, el, err := s.page.Context(ctx).Has(s.cfg.Selectors.InvalidOK)
	if err != nil || !has {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// LoggedIn reports whether the chat list is rendered.
func (s *Session) LoggedIn(ctx context.Context) (bool, error) {
	snap, err := s.snapshot(ctx)
	return snap.LoggedIn, err
}

// LoginCode returns the QR payload while logged out.
func (s *Session) LoginCode(ctx context.Context) (string, error) {
	snap, err := s.snapshot(ctx)
	return snap.LoginCode, err
}

func (s *Session) snapshot(ctx context.Context) (Snapshot, error) {
	html, err := s.page.Context(ctx).HTML()
	if err != nil {
		return Snapshot{}, fmt.Errorf("read page: %w", err)
	}
	return s.cfg.Selectors.Parse(html)
}

// Close shuts the tab and browser down and stops a Chrome we launched.
func (s *Session) Close() error {
	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.browser != nil && s.launcher != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.launcher != nil {
		s.launcher.Kill()
	}
	return errors.Join(errs...)
}
