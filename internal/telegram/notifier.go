package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultAPIURL = "https://api.telegram.org"
	timeLayout    = "2006-01-02 15:04:05"

	// alertTimeout bounds one fire-and-forget alert so a slow Bot API never
	// holds up a send or shutdown.
	alertTimeout = 5 * time.Second
)

// Notifier sends operator alerts to a Telegram chat. A Notifier without a
// token is disabled and every alert is a no-op.
type Notifier struct {
	token  string
	chatID string
	client *resty.Client
	now    func() time.Time
}

// NewNotifier creates a notifier for the bot token and chat.
func NewNotifier(token, chatID string) *Notifier {
	return NewNotifierWithURL(DefaultAPIURL, token, chatID)
}

// NewNotifierWithURL is NewNotifier against another Bot API endpoint.
func NewNotifierWithURL(baseURL, token, chatID string) *Notifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")
	return &Notifier{
		token:  token,
		chatID: chatID,
		client: client,
		now:    time.Now,
	}
}

// Enabled reports whether alerts go anywhere.
func (n *Notifier) Enabled() bool {
	return n != nil && n.token != "" && n.chatID != ""
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendAlert sends a message to Telegram
func (n *Notifier) SendAlert(ctx context.Context, message string) error {
	if !n.Enabled() {
		return nil
	}

	var out apiResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetPathParam("token", n.token).
		SetBody(map[string]string{
			"chat_id":    n.chatID,
			"text":       message,
			"parse_mode": "HTML",
		}).
		SetResult(&out).
		SetError(&out).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("telegram API returned status %d: %s", resp.StatusCode(), out.Description)
	}

	logrus.Debugf("[Telegram] Alert sent: %.50s...", message)
	return nil
}

func (n *Notifier) send(ctx context.Context, kind, msg string) {
	if !n.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, alertTimeout)
	defer cancel()
	if err := n.SendAlert(ctx, msg); err != nil {
		logrus.Warnf("[Telegram] Failed to send %s alert: %v", kind, err)
	}
}

// AlertDisconnected reports that the WhatsApp session dropped mid-run.
func (n *Notifier) AlertDisconnected(ctx context.Context, phone string) {
	n.send(ctx, "disconnect", fmt.Sprintf(`⚠️ <b>DISCONNECTED</b>

📱 While sending to: %s
📷 Scan the login QR to resume
⏰ Time: %s`, phone, n.now().Format(timeLayout)))
}

// AlertLoginCode reports where the current login QR image was written.
func (n *Notifier) AlertLoginCode(ctx context.Context, path string) {
	n.send(ctx, "login code", fmt.Sprintf(`📷 <b>LOGIN REQUIRED</b>

🖼️ QR: %s
⏰ Time: %s`, path, n.now().Format(timeLayout)))
}

// AlertReconnected reports that the session is back.
func (n *Notifier) AlertReconnected(ctx context.Context, phone string, waited time.Duration) {
	n.send(ctx, "reconnected", fmt.Sprintf(`✅ <b>RECONNECTED</b>

📱 Resuming with: %s
⏱️ Waited: %s
⏰ Time: %s`, phone, waited.Round(time.Second), n.now().Format(timeLayout)))
}

// AlertCampaignDone sends the end-of-run summary. Callers finishing after an
// interrupt should pass a context detached from the cancelled one.
func (n *Notifier) AlertCampaignDone(ctx context.Context, sent, invalid, skipped int, duration time.Duration) {
	n.send(ctx, "campaign done", fmt.Sprintf(`✅ <b>CAMPAIGN DONE</b>

📤 Sent: %d
🚫 Invalid: %d
❌ Skipped: %d
⏱️ Duration: %s
⏰ Time: %s`, sent, invalid, skipped, duration.Round(time.Second), n.now().Format(timeLayout)))
}
