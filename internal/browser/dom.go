package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors locate the WhatsApp Web landmarks the driver reacts to. They are
// CSS so the same strings work for rod lookups and goquery snapshots.
type Selectors struct {
	ComposeBox  string `mapstructure:"compose_box"`
	InvalidOK   string `mapstructure:"invalid_ok"`
	LoggedIn    string `mapstructure:"logged_in"`
	LoginQR     string `mapstructure:"login_qr"`
	LoginQRAttr string `mapstructure:"login_qr_attr"`
}

// DefaultSelectors match the current WhatsApp Web layout.
func DefaultSelectors() Selectors {
	return Selectors{
		ComposeBox:  `#main footer [role="textbox"]`,
		InvalidOK:   `[data-testid="popup-controls-ok"]`,
		LoggedIn:    `#side`,
		LoginQR:     `[data-ref]`,
		LoginQRAttr: "data-ref",
	}
}

// Snapshot is what one look at the page tells us.
type Snapshot struct {
	ComposeBox    bool
	InvalidNumber bool
	LoggedIn      bool
	LoginCode     string
}

// Parse classifies an HTML snapshot of the page.
func (s Selectors) Parse(html string) (Snapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Snapshot{}, fmt.Errorf("parse page html: %w", err)
	}

	snap := Snapshot{
		ComposeBox:    doc.Find(s.ComposeBox).Length() > 0,
		InvalidNumber: doc.Find(s.InvalidOK).Length() > 0,
		LoggedIn:      doc.Find(s.LoggedIn).Length() > 0,
	}
	if !snap.LoggedIn {
		if code, ok := doc.Find(s.LoginQR).First().Attr(s.LoginQRAttr); ok {
			snap.LoginCode = strings.TrimSpace(code)
		}
	}
	return snap, nil
}
