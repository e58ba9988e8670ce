package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/whatsapp-automation/broadcaster/internal/antiban"
	"github.com/whatsapp-automation/broadcaster/internal/api"
	"github.com/whatsapp-automation/broadcaster/internal/browser"
	"github.com/whatsapp-automation/broadcaster/internal/campaign"
	"github.com/whatsapp-automation/broadcaster/internal/config"
	"github.com/whatsapp-automation/broadcaster/internal/contacts"
	"github.com/whatsapp-automation/broadcaster/internal/delivery"
	"github.com/whatsapp-automation/broadcaster/internal/fingerprint"
	"github.com/whatsapp-automation/broadcaster/internal/ledger"
	"github.com/whatsapp-automation/broadcaster/internal/message"
	"github.com/whatsapp-automation/broadcaster/internal/qr"
	"github.com/whatsapp-automation/broadcaster/internal/telegram"
	"github.com/whatsapp-automation/broadcaster/internal/whatsapp"
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send the message to every contact not yet delivered",
	Long: `Send reads the contact CSV, drops everyone already present in a delivery
report, and messages the rest one by one with randomized pauses. Sent
contacts are written to a new delivered_report_<timestamp>.csv and removed
from the CSV, also when the run is interrupted with Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return runSend(cmd.Context(), cfg)
	},
}

func init() {
	policy := antiban.DefaultPolicy()
	f := sendCmd.Flags()

	f.String("csv", "", "contact CSV (rewritten in place)")
	f.String("phone-col", "phone", "phone column name")
	f.String("name-col", "name", "name column name, used for {name}")
	f.String("message", "", "message template")
	f.String("message-file", "", "file holding the message template")
	f.String("messages-json", "", "JSON array of templates, one picked at random per contact")
	f.Bool("dry-run", false, "log what would be sent without opening WhatsApp or writing anything")
	f.String("transport", config.TransportBrowser, "browser (WhatsApp Web in Chrome) or whatsmeow (linked device)")

	f.Int("batch-size", policy.BatchSize, "contacts per batch")
	f.Duration("batch-pause", policy.BatchPause, "pause between batches")
	f.Duration("pre-send-min", policy.PreSend.Min, "minimum wait before opening a chat")
	f.Duration("pre-send-max", policy.PreSend.Max, "maximum wait before opening a chat")
	f.Duration("settle", policy.Settle, "wait after the chat opens")
	f.Duration("pre-submit-min", policy.PreSubmit.Min, "minimum wait before pressing Enter")
	f.Duration("pre-submit-max", policy.PreSubmit.Max, "maximum wait before pressing Enter")
	f.Duration("post-submit-min", policy.PostSubmit.Min, "minimum wait after pressing Enter")
	f.Duration("post-submit-max", policy.PostSubmit.Max, "maximum wait after pressing Enter")
	f.Duration("compose-timeout", policy.ComposeTimeout, "how long to wait for the chat to open")
	f.Duration("poll-interval", policy.PollInterval, "login check interval while disconnected")
	f.Int("max-session-retries", delivery.DefaultMaxSessionRetries, "reconnects tolerated for one contact")

	f.String("chrome-bin", "", "Chrome binary (default: auto-detect or download)")
	f.String("control-url", "", "attach to a running Chrome DevTools URL instead of launching")
	f.Bool("headless", false, "run Chrome headless (login QR is written to --qr-dir)")
	f.String("user-data-dir", "./chrome-data", "Chrome profile directory, keeps the login between runs")
	f.Duration("login-timeout", 60*time.Second, "how long to wait for the initial login")
	f.String("device-seed", "default-seed", "seed for the browser profile (user agent, viewport)")
	f.String("country", "BR", "country for timezone and language")
	f.String("qr-dir", "./qrcodes", "where login QR codes are written")
	f.String("session-db", "./sessions/whatsmeow.db", "linked-device session database (whatsmeow transport)")

	f.String("status-addr", "", "serve run status over HTTP on this address, e.g. :8080")
	f.String("telegram-token", "", "Telegram bot token for alerts")
	f.String("telegram-chat-id", "", "Telegram chat for alerts")

	f.String("proxy-host", "", "proxy host")
	f.String("proxy-port", "", "proxy port")
	f.String("proxy-user", "", "proxy user")
	f.String("proxy-pass", "", "proxy password")
	f.String("proxy-type", "socks5", "proxy type: socks5 or http")

	rootCmd.AddCommand(sendCmd)
}

func runSend(ctx context.Context, cfg *config.Config) error {
	l, err := ledger.Open(ctx, cfg.ReportDir, cfg.LedgerDSN)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer l.Close()

	table, err := contacts.Load(cfg.Input, cfg.PhoneCol, cfg.NameCol)
	if err != nil {
		return err
	}
	if !table.HasNames() {
		logrus.Warnf("[Campaign] Column %q not found, messages go out without {name}", cfg.NameCol)
	}

	pacer := antiban.NewPacer(cfg.Policy(), antiban.ClockSleeper{})
	messages, err := message.Load(cfg.MessageOptions(), pacer)
	if err != nil {
		return err
	}

	notifier := telegram.NewNotifier(cfg.TelegramToken, cfg.TelegramChatID)
	ctrl := campaign.New(table, l, messages, pacer)
	ctrl.DryRun = cfg.DryRun
	ctrl.OnFinish = func(s campaign.Summary) {
		notifier.AlertCampaignDone(context.WithoutCancel(ctx), s.Sent, s.Invalid, s.Skipped, s.Duration)
	}

	pending, err := ctrl.Resume()
	if err != nil {
		return err
	}
	if pending == 0 {
		logrus.Info("[Campaign] All contacts have already been processed, nothing to do")
		return nil
	}

	profile := fingerprint.Generate(cfg.DeviceSeed, cfg.Country)
	sender, closeSender, err := openSender(ctx, cfg, &profile, pacer, notifier)
	if err != nil {
		if ctx.Err() != nil {
			logrus.Warn("[Transport] Interrupted before the session was ready, nothing was sent")
			return nil
		}
		return err
	}
	defer func() {
		if err := closeSender(); err != nil {
			logrus.Warnf("[Transport] Close: %v", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	if cfg.StatusAddr != "" {
		srv := api.NewServer(ctrl, l)
		srv.Transport = cfg.Transport
		srv.Profile = &profile
		srv.DryRun = cfg.DryRun
		g.Go(func() error { return srv.ListenAndServe(srvCtx, cfg.StatusAddr) })
	}
	g.Go(func() error {
		defer stopServer()
		_, err := ctrl.Run(gctx, sender)
		return err
	})
	return g.Wait()
}

func openSender(ctx context.Context, cfg *config.Config, profile *fingerprint.Profile, pacer *antiban.Pacer, notifier *telegram.Notifier) (delivery.Sender, func() error, error) {
	if cfg.DryRun {
		logrus.Info("[Transport] Dry run: nothing is sent and no file is written")
		return delivery.DryRun{}, func() error { return nil }, nil
	}

	codes := qr.NewWriter(cfg.QRDir)
	onCode := func(ctx context.Context, code string) {
		path, err := codes.Write(code)
		if err != nil {
			logrus.Errorf("[QR] Failed to write login QR: %v", err)
			return
		}
		logrus.Warnf("[QR] Scan the login QR saved to %s", path)
		if !cfg.Headless {
			if art, err := qr.Terminal(code); err == nil {
				fmt.Fprintln(os.Stderr, art)
			}
		}
		notifier.AlertLoginCode(ctx, path)
	}
	loginCode := func(code string) { onCode(ctx, code) }
	hooks := delivery.Hooks{
		SessionLost:     notifier.AlertDisconnected,
		LoginCode:       onCode,
		SessionRestored: notifier.AlertReconnected,
	}

	switch cfg.Transport {
	case config.TransportWhatsmeow:
		client, err := whatsapp.Open(ctx, whatsapp.Config{
			SessionDB:    cfg.SessionDB,
			ProxyURL:     cfg.Proxy.GetURL(),
			Profile:      profile,
			LoginTimeout: cfg.LoginTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("start whatsmeow: %w", err)
		}
		if err := client.Login(ctx, loginCode); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("whatsmeow login: %w", err)
		}
		sender := whatsapp.NewSender(client, pacer)
		sender.MaxSessionRetries = cfg.MaxSessionRetries
		sender.Hooks = hooks
		return sender, client.Close, nil

	default:
		bcfg := cfg.Browser()
		bcfg.PollInterval = cfg.PollInterval
		bcfg.Profile = profile
		if cfg.Proxy.Enabled() {
			logrus.Infof("[Browser] Using proxy %s", cfg.Proxy)
		}
		sess, err := browser.Launch(ctx, bcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("start browser: %w", err)
		}
		logrus.Info("[Browser] Waiting for WhatsApp Web login...")
		if err := sess.WaitLogin(ctx, loginCode); err != nil {
			sess.Close()
			return nil, nil, fmt.Errorf("whatsapp web login: %w", err)
		}
		driver := delivery.NewDriver(sess, pacer)
		driver.MaxSessionRetries = cfg.MaxSessionRetries
		driver.Hooks = hooks
		return driver, sess.Close, nil
	}
}
