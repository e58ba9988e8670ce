package delivery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/whatsapp-automation/broadcaster/internal/antiban"
)

// DefaultChatURL is the WhatsApp Web deep link that opens a chat with a
// pre-filled message.
const DefaultChatURL = "https://web.whatsapp.com/send"

// DefaultMaxSessionRetries bounds how many times one contact is retried
// after the session drops and comes back.
const DefaultMaxSessionRetries = 3

// Page is what the driver needs from a logged-in WhatsApp Web tab.
type Page interface {
	// Open navigates to url.
	Open(ctx context.Context, url string) error
	// WaitCompose waits up to timeout for the message box; false on timeout.
	WaitCompose(ctx context.Context, timeout time.Duration) (bool, error)
	// Submit presses Enter in the message box.
	Submit(ctx context.Context) error
	// InvalidNumberShown reports whether the "invalid number" popup is up.
	InvalidNumberShown(ctx context.Context) (bool, error)
	// DismissInvalid acknowledges that popup.
	DismissInvalid(ctx context.Context) error
	// LoggedIn reports whether the logged-in landmark is present.
	LoggedIn(ctx context.Context) (bool, error)
	// LoginCode returns the payload of the login QR if one is on screen.
	LoginCode(ctx context.Context) (string, error)
}

// Hooks are optional callbacks around session recovery.
type Hooks struct {
	SessionLost     func(ctx context.Context, phone string)
	LoginCode       func(ctx context.Context, code string)
	SessionRestored func(ctx context.Context, phone string, waited time.Duration)
}

// Driver sends through a Page with human-like pacing and recovers from a
// dropped session by waiting for the user to log in again.
type Driver struct {
	page  Page
	pacer *antiban.Pacer

	ChatURL           string
	MaxSessionRetries int
	Hooks             Hooks
}

// NewDriver wires a driver to a page and a pacer.
func NewDriver(page Page, pacer *antiban.Pacer) *Driver {
	return &Driver{
		page:              page,
		pacer:             pacer,
		ChatURL:           DefaultChatURL,
		MaxSessionRetries: DefaultMaxSessionRetries,
	}
}

// Link builds the deep link for phone with message pre-filled.
func (d *Driver) Link(phone, message string) string {
	text := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	return fmt.Sprintf("%s?phone=%s&text=%s", d.ChatURL, url.QueryEscape(phone), text)
}

// AttemptSend sends message to phone. A lost session is waited out and the
// same contact retried, at most MaxSessionRetries times.
func (d *Driver) AttemptSend(ctx context.Context, phone, message string) (Outcome, error) {
	link := d.Link(phone, message)

	for retry := 0; ; retry++ {
		outcome, err := d.attempt(ctx, phone, link)
		if err != nil || outcome != SessionLost {
			return outcome, err
		}

		if retry >= d.MaxSessionRetries {
			logrus.Errorf("[Driver] Session lost %d times while sending to %s, skipping", retry+1, phone)
			return SkippedUnknownFailure, nil
		}
		if err := d.awaitLogin(ctx, phone); err != nil {
			return SkippedUnknownFailure, err
		}
		logrus.Infof("[Driver] Retrying %s after reconnect (%d/%d)", phone, retry+1, d.MaxSessionRetries)
	}
}

func (d *Driver) attempt(ctx context.Context, phone, link string) (Outcome, error) {
	policy := d.pacer.Policy

	if err := d.pacer.Wait(ctx, policy.PreSend); err != nil {
		return SkippedUnknownFailure, err
	}

	if err := d.page.Open(ctx, link); err != nil {
		return d.failed(ctx, phone, "open chat", err)
	}

	present, err := d.page.WaitCompose(ctx, policy.ComposeTimeout)
	if err != nil {
		return d.failed(ctx, phone, "wait for message box", err)
	}
	if !present {
		logrus.Warnf("[Driver] Timeout waiting for chat with %s, checking why", phone)
		return d.classify(ctx, phone)
	}

	if err := d.pacer.Sleep(ctx, policy.Settle); err != nil {
		return SkippedUnknownFailure, err
	}
	if err := d.pacer.Wait(ctx, policy.PreSubmit); err != nil {
		return SkippedUnknownFailure, err
	}
	if err := d.page.Submit(ctx); err != nil {
		return d.failed(ctx, phone, "submit", err)
	}
	logrus.Infof("[Driver] Message sent to %s", phone)

	// Give the page time to flush before navigating away. An interrupt here
	// still counts as sent.
	if err := d.pacer.Wait(ctx, policy.PostSubmit); err != nil {
		return Sent, err
	}
	return Sent, nil
}

// classify decides why the message box never appeared. Order matters: an
// explicit error popup wins over a missing login landmark.
func (d *Driver) classify(ctx context.Context, phone string) (Outcome, error) {
	invalid, err := d.page.InvalidNumberShown(ctx)
	if err != nil && ctx.Err() != nil {
		return SkippedUnknownFailure, ctx.Err()
	}
	if err == nil && invalid {
		if err := d.page.DismissInvalid(ctx); err != nil {
			logrus.Warnf("[Driver] Could not dismiss invalid number popup: %v", err)
		}
		logrus.Warnf("[Driver] Invalid number detected for %s", phone)
		return InvalidNumber, nil
	}

	loggedIn, err := d.page.LoggedIn(ctx)
	if err != nil {
		return d.failed(ctx, phone, "check session", err)
	}
	if !loggedIn {
		return SessionLost, nil
	}

	logrus.Warnf("[Driver] Could not open chat for %s, reason unknown (not invalid, not disconnected). Skipping", phone)
	return SkippedUnknownFailure, nil
}

func (d *Driver) failed(ctx context.Context, phone, step string, err error) (Outcome, error) {
	if ctx.Err() != nil {
		return SkippedUnknownFailure, ctx.Err()
	}
	logrus.Errorf("[Driver] Failed to send message to %s (%s): %v", phone, step, err)
	return SkippedUnknownFailure, nil
}
