package delivery

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// awaitLogin blocks until the logged-in landmark is back. There is no
// timeout: a human has to scan the login code. Only ctx ends the wait.
func (d *Driver) awaitLogin(ctx context.Context, phone string) error {
	logrus.Warnf("[Recovery] WhatsApp Web session disconnected while sending to %s. Waiting for QR code scan...", phone)
	if d.Hooks.SessionLost != nil {
		d.Hooks.SessionLost(ctx, phone)
	}

	start := time.Now()
	lastCode := ""
	for {
		loggedIn, err := d.page.LoggedIn(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			logrus.Errorf("[Recovery] Error while waiting for login: %v", err)
		case loggedIn:
			waited := time.Since(start)
			logrus.Infof("[Recovery] Re-connection successful after %v. Resuming...", waited.Round(time.Second))
			if d.Hooks.SessionRestored != nil {
				d.Hooks.SessionRestored(ctx, phone, waited)
			}
			return nil
		default:
			if code, err := d.page.LoginCode(ctx); err == nil && code != "" && code != lastCode {
				lastCode = code
				if d.Hooks.LoginCode != nil {
					d.Hooks.LoginCode(ctx, code)
				}
			}
		}

		if err := d.pacer.Sleep(ctx, d.pacer.Policy.PollInterval); err != nil {
			return err
		}
	}
}
