// Package whatsapp sends over the WhatsApp multi-device protocol as a linked
// device, without a browser.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/whatsapp-automation/broadcaster/internal/fingerprint"
)

// ErrLoginTimeout is returned when pairing does not finish in time.
var ErrLoginTimeout = errors.New("login not completed in time")

// Config controls the linked-device connection.
type Config struct {
	SessionDB    string
	ProxyURL     string
	Profile      *fingerprint.Profile
	LoginTimeout time.Duration
}

// Client is one linked-device connection. It implements Conn.
type Client struct {
	cli     *whatsmeow.Client
	store   *SessionStore
	cfg     Config
	resumed bool
}

// Open loads the session store and prepares the client. It does not
// connect; call Login.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	ss, err := OpenSessionStore(ctx, cfg.SessionDB)
	if err != nil {
		return nil, err
	}

	device, resumed, err := ss.Device(ctx)
	if err != nil {
		ss.Close()
		return nil, err
	}

	osName := "Windows"
	if cfg.Profile != nil {
		osName = fmt.Sprintf("Windows (%s)", cfg.Profile.ID)
	}
	platform := waCompanionReg.DeviceProps_CHROME
	store.DeviceProps.PlatformType = &platform
	store.DeviceProps.Os = &osName

	cli := whatsmeow.NewClient(device, newLogger("Client"))
	cli.EnableAutoReconnect = true
	cli.AutoTrustIdentity = true
	if cfg.ProxyURL != "" {
		if err := cli.SetProxyAddress(cfg.ProxyURL); err != nil {
			ss.Close()
			return nil, fmt.Errorf("failed to set proxy address: %w", err)
		}
	}

	c := &Client{cli: cli, store: ss, cfg: cfg, resumed: resumed}
	cli.AddEventHandler(c.handleEvent)
	return c, nil
}

// Login connects. With a stored session it waits for the login to settle;
// otherwise it pairs through QR codes handed to onCode.
func (c *Client) Login(ctx context.Context, onCode func(code string)) error {
	lctx := ctx
	if c.cfg.LoginTimeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, c.cfg.LoginTimeout)
		defer cancel()
	}

	if c.resumed {
		logrus.Infof("[WhatsApp] Existing session found in %s, connecting...", c.store.Path())
		if err := c.cli.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		return c.waitLoggedIn(lctx, ctx)
	}

	qrChan, err := c.cli.GetQRChannel(lctx)
	if err != nil {
		return fmt.Errorf("failed to get QR channel: %w", err)
	}
	if err := c.cli.Connect(); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	for evt := range qrChan {
		switch evt.Event {
		case whatsmeow.QRChannelEventCode:
			if onCode != nil {
				onCode(evt.Code)
			}
		case whatsmeow.QRChannelSuccess.Event:
			logrus.Info("[WhatsApp] Pairing successful")
			return nil
		case whatsmeow.QRChannelTimeout.Event:
			return ErrLoginTimeout
		case whatsmeow.QRChannelEventError:
			return fmt.Errorf("pairing failed: %w", evt.Error)
		default:
			logrus.Debugf("[WhatsApp] QR event: %s", evt.Event)
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrLoginTimeout
}

func (c *Client) waitLoggedIn(lctx, ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for !c.cli.IsLoggedIn() {
		select {
		case <-lctx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrLoginTimeout
		case <-ticker.C:
		}
	}
	logrus.Info("[WhatsApp] Connected with existing session")
	return nil
}

func (c *Client) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Connected:
		logrus.Info("[WhatsApp] Connected")
	case *events.Disconnected:
		logrus.Warn("[WhatsApp] Disconnected from WhatsApp, auto-reconnect enabled")
	case *events.LoggedOut:
		logrus.Errorf("[WhatsApp] Logged out (reason %v), the device must be paired again", v.Reason)
	case *events.TemporaryBan:
		logrus.Errorf("[WhatsApp] Temporary ban: %s (expires in %v)", v.Code, v.Expire)
	case *events.StreamReplaced:
		logrus.Warn("[WhatsApp] Session opened elsewhere, this connection was replaced")
	}
}

// LoggedIn reports whether the session is usable.
func (c *Client) LoggedIn() bool {
	return c.cli.IsConnected() && c.cli.IsLoggedIn()
}

// Registered reports whether phone has a WhatsApp account.
func (c *Client) Registered(ctx context.Context, phone string) (bool, error) {
	resp, err := c.cli.IsOnWhatsApp(ctx, []string{"+" + phone})
	if err != nil {
		return false, err
	}
	for _, r := range resp {
		if r.IsIn {
			return true, nil
		}
	}
	return false, nil
}

// Typing marks the account available before a send.
func (c *Client) Typing(ctx context.Context) error {
	return c.cli.SendPresence(ctx, types.PresenceAvailable)
}

// Send delivers text to phone.
func (c *Client) Send(ctx context.Context, phone, text string) error {
	jid, err := parseJID(phone)
	if err != nil {
		return err
	}
	msg := &waE2E.Message{
		Conversation: proto.String(text),
	}
	if _, err := c.cli.SendMessage(ctx, jid, msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Close disconnects and closes the session database.
func (c *Client) Close() error {
	c.cli.Disconnect()
	return c.store.Close()
}

func parseJID(phone string) (types.JID, error) {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "+")
	if phone == "" {
		return types.JID{}, fmt.Errorf("empty phone number")
	}
	return types.NewJID(phone, types.DefaultUserServer), nil
}
