// Package inspector serves verification history over HTTP so a CI
// dashboard can read reports without shelling out to the CLI.
package inspector

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cgast/idemverify/internal/logging"
	"github.com/cgast/idemverify/pkg/store"
	"github.com/cgast/idemverify/pkg/verify"
)

// History is the read side of the store.
type History interface {
	Reports() ([]store.ReportSummary, error)
	Report(id string) (verify.Report, error)
	ListFacts() ([]store.FactRecord, error)
}

// Server is the read-only history HTTP server.
type Server struct {
	history   History
	logger    *slog.Logger
	mux       *http.ServeMux
	startTime time.Time
}

// New creates a server over history. A nil logger discards request logs.
func New(history History, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		history:   history,
		logger:    logger,
		mux:       http.NewServeMux(),
		startTime: time.Now(),
	}

	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/reports", s.handleReports)
	s.mux.HandleFunc("GET /api/reports/{id}", s.handleReport)
	s.mux.HandleFunc("GET /api/diff", s.handleDiff)
	s.mux.HandleFunc("GET /api/facts", s.handleFacts)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("request", "method", r.Method, "path", r.URL.Path)
	s.mux.ServeHTTP(w, r)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler { return s }

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	summaries, err := s.history.Reports()
	if err != nil {
		writeError(w, err)
		return
	}

	status := map[string]any{
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
		"reports": len(summaries),
	}
	if len(summaries) > 0 {
		latest := summaries[0]
		status["latest"] = map[string]any{
			"id":      latest.ID,
			"name":    latest.Name,
			"outcome": latest.Outcome,
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.history.Reports()
	if err != nil {
		writeError(w, err)
		return
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			http.Error(w, fmt.Sprintf("invalid limit %q", raw), http.StatusBadRequest)
			return
		}
		if limit > 0 && len(summaries) > limit {
			summaries = summaries[:limit]
		}
	}
	if summaries == nil {
		summaries = []store.ReportSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.history.Report(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	beforeID, afterID := q.Get("before"), q.Get("after")
	if beforeID == "" || afterID == "" {
		http.Error(w, "before and after are required", http.StatusBadRequest)
		return
	}

	before, err := s.history.Report(beforeID)
	if err != nil {
		writeError(w, err)
		return
	}
	after, err := s.history.Report(afterID)
	if err != nil {
		writeError(w, err)
		return
	}

	changes := verify.Diff(before, after)
	if changes == nil {
		changes = []verify.Change{}
	}
	writeJSON(w, http.StatusOK, changes)
}

func (s *Server) handleFacts(w http.ResponseWriter, _ *http.Request) {
	records, err := s.history.ListFacts()
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []store.FactRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, store.ErrNotFound) {
		code = http.StatusNotFound
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}
