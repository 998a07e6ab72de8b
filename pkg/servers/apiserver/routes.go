package apiserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/vulntor/console/pkg/credential"
	"github.com/vulntor/console/pkg/history"
	"github.com/vulntor/console/pkg/params"
	"github.com/vulntor/console/pkg/target"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// TargetView is a stored target with its id.
type TargetView struct {
	ID string `json:"id"`
	*target.Target
}

// CredentialView is a redacted stored credential with its id.
type CredentialView struct {
	ID string `json:"id"`
	*credential.Credential
}

// SessionView describes a live session.
type SessionView struct {
	ID     string             `json:"id"`
	Major  string             `json:"majortype"`
	Minor  string             `json:"subtype"`
	Params *params.Collection `json:"params"`
}

type handlers struct {
	console Console
}

// NewRouter builds the API routes over console.
func NewRouter(console Console) http.Handler {
	h := &handlers{console: console}

	r := chi.NewRouter()
	r.Use(logRequests, recoverPanics)
	r.Get("/targets", h.listTargets)
	r.Get("/credentials", h.listCredentials)
	r.Get("/sessions", h.listSessions)
	r.Get("/sessions/{id}/history", h.sessionHistory)
	r.Get("/history/{id}", h.getHistory)
	return r
}

func (h *handlers) listTargets(w http.ResponseWriter, r *http.Request) {
	entries := h.console.Targets()
	out := make([]TargetView, 0, len(entries))
	for _, e := range entries {
		out = append(out, TargetView{ID: e.ID, Target: e.Target})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) listCredentials(w http.ResponseWriter, r *http.Request) {
	entries := h.console.Credentials()
	out := make([]CredentialView, 0, len(entries))
	for _, e := range entries {
		out = append(out, CredentialView{ID: e.ID, Credential: e.Credential.Redacted()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	entries := h.console.Sessions()
	out := make([]SessionView, 0, len(entries))
	for _, e := range entries {
		out = append(out, SessionView{
			ID:     e.ID,
			Major:  string(e.Type.Major),
			Minor:  e.Type.Minor,
			Params: e.Session.Params(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) sessionHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.console.History().List(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// getHistory returns one entry; ?format=jsonl|tsv switches to the export
// encodings.
func (h *handlers) getHistory(w http.ResponseWriter, r *http.Request) {
	e, err := h.console.History().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	format := history.FormatJSON
	if q := r.URL.Query().Get("format"); q != "" {
		if format, err = history.ParseFormat(q); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Bad Request", Message: err.Error()})
			return
		}
	}
	switch format {
	case history.FormatJSON:
		writeJSON(w, http.StatusOK, e)
	case history.FormatJSONL:
		w.Header().Set("Content-Type", "application/x-ndjson")
		_ = history.Export(w, e, format)
	default:
		w.Header().Set("Content-Type", "text/tab-separated-values")
		_ = history.Export(w, e, format, cast.ToStringSlice(e.Parameters[params.ResultHeaders])...)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Str("component", "apiserver").Err(err).Msg("Failed to encode response")
	}
}

// writeError maps history.ErrNotFound to 404 and everything else to 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := http.StatusInternalServerError, "Internal Server Error"
	if errors.Is(err, history.ErrNotFound) {
		status, kind = http.StatusNotFound, "Not Found"
	}
	log.Warn().
		Str("component", "apiserver").
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Err(err).
		Msg("Request failed")
	writeJSON(w, status, ErrorResponse{Error: kind, Message: err.Error()})
}
