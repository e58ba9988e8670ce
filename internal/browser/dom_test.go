package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	chatOpenHTML = `<html><body>
<div id="side"><header>Chats</header></div>
<div id="main"><footer><div contenteditable="true" role="textbox">Olá</div></footer></div>
</body></html>`

	invalidNumberHTML = `<html><body>
<div id="side"></div>
<div role="dialog"><div>Phone number shared via url is invalid.</div>
<button data-testid="popup-controls-ok">OK</button></div>
</body></html>`

	loggedOutHTML = `<html><body>
<div class="landing"><div data-ref="2@Zm9vYmFy,abc,def"><canvas></canvas></div></div>
</body></html>`

	stuckHTML = `<html><body><div id="side"></div><div id="app">Loading…</div></body></html>`
)

func TestSelectorsParse(t *testing.T) {
	sel := DefaultSelectors()

	tests := []struct {
		name string
		html string
		want Snapshot
	}{
		{"chat open", chatOpenHTML, Snapshot{ComposeBox: true, LoggedIn: true}},
		{"invalid number", invalidNumberHTML, Snapshot{InvalidNumber: true, LoggedIn: true}},
		{"logged out", loggedOutHTML, Snapshot{LoginCode: "2@Zm9vYmFy,abc,def"}},
		{"stuck loading", stuckHTML, Snapshot{LoggedIn: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sel.Parse(tt.html)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
