package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsapp-automation/broadcaster/internal/campaign"
	"github.com/whatsapp-automation/broadcaster/internal/fingerprint"
	"github.com/whatsapp-automation/broadcaster/internal/ledger"
	"github.com/whatsapp-automation/broadcaster/internal/logging"
)

func init() {
	logging.Quiet()
}

type staticProgress campaign.Progress

func (p staticProgress) Progress() campaign.Progress { return campaign.Progress(p) }

type memLedger map[string]struct{}

func (m memLedger) Has(phone string) bool {
	_, ok := m[phone]
	return ok
}

func (m memLedger) Phones() map[string]struct{} { return m }

func (m memLedger) Record(context.Context, string, []ledger.Record) (string, error) {
	return "", nil
}

func (m memLedger) Sources() []ledger.Source {
	return []ledger.Source{{Name: "delivered_report_20240101_090000.csv", Phones: len(m)}}
}

func (m memLedger) Close() error { return nil }

func newTestServer() *Server {
	progress := staticProgress{RunID: "run-1", State: campaign.StateSending, Total: 10, Processed: 4, Sent: 3, Skipped: 1}
	s := NewServer(progress, memLedger{"5511987654321": {}})
	s.Transport = "browser"
	profile := fingerprint.Generate("seed", "BR")
	s.Profile = &profile
	return s
}

func get(t *testing.T, h http.Handler, path string) (int, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth(t *testing.T) {
	code, body := get(t, newTestServer().Handler(), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["healthy"])
	assert.Equal(t, "sending", body["state"])
}

func TestStatus(t *testing.T) {
	code, body := get(t, newTestServer().Handler(), "/status")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "browser", body["transport"])
	assert.EqualValues(t, 6, body["remaining"])

	progress := body["progress"].(map[string]interface{})
	assert.Equal(t, "run-1", progress["run_id"])
	assert.EqualValues(t, 3, progress["sent"])

	profile := body["profile"].(map[string]interface{})
	assert.Equal(t, "America/Sao_Paulo", profile["timezone"])
}

func TestLedgerLookup(t *testing.T) {
	h := newTestServer().Handler()

	code, body := get(t, h, "/ledger/11987654321")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "5511987654321", body["canonical"])
	assert.Equal(t, true, body["delivered"])
	assert.Equal(t, true, body["valid"])

	_, body = get(t, h, "/ledger/21999998888")
	assert.Equal(t, false, body["delivered"])

	code, body = get(t, h, "/ledger/abc")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, true, body["error"])
}

func TestLedgerSummary(t *testing.T) {
	code, body := get(t, newTestServer().Handler(), "/ledger")
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["delivered"])
	assert.Len(t, body["sources"], 1)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
