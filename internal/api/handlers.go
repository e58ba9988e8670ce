package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/whatsapp-automation/broadcaster/internal/campaign"
	"github.com/whatsapp-automation/broadcaster/internal/fingerprint"
	"github.com/whatsapp-automation/broadcaster/internal/ledger"
	"github.com/whatsapp-automation/broadcaster/internal/phone"
)

// ProgressSource is anything that can report the live run state.
type ProgressSource interface {
	Progress() campaign.Progress
}

// Server exposes a read-only view of the running campaign.
type Server struct {
	Transport string
	Profile   *fingerprint.Profile
	DryRun    bool

	progress ProgressSource
	ledger   ledger.Ledger
	started  time.Time
}

// NewServer creates the status server for one run.
func NewServer(progress ProgressSource, l ledger.Ledger) *Server {
	return &Server{
		progress: progress,
		ledger:   l,
		started:  time.Now(),
	}
}

// RegisterRoutes sets up all API routes
func (s *Server) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/ledger", s.handleLedger).Methods(http.MethodGet)
	r.HandleFunc("/ledger/{phone}", s.handleLedgerLookup).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"error": true, "message": message})
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	p := s.progress.Progress()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"healthy": true,
		"state":   p.State,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

// GET /status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := s.progress.Progress()
	resp := map[string]interface{}{
		"transport": s.Transport,
		"dry_run":   s.DryRun,
		"progress":  p,
		"remaining": p.Remaining(),
	}
	if s.Profile != nil {
		resp["profile"] = s.Profile.ToMap()
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /ledger
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"delivered": len(s.ledger.Phones()),
		"sources":   s.ledger.Sources(),
	})
}

// GET /ledger/{phone} - answers with the normalized form too, so callers can
// look up raw spreadsheet values.
func (s *Server) handleLedgerLookup(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["phone"]
	normalized, ok := phone.Normalize(raw)
	if normalized == "" {
		writeError(w, http.StatusBadRequest, "phone has no digits")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"phone":     raw,
		"canonical": normalized,
		"valid":     ok,
		"delivered": s.ledger.Has(normalized),
	})
}
