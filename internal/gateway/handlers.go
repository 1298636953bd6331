package gateway

import (
	"encoding/json"
	"io"
	"net/http"
)

const (
	livenessText   = "gewebridge callback server is running"
	maxWebhookBody = 4 << 20
)

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// handleCallback serves staged files on GET and accepts provider events on
// POST.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != s.callbackPath {
		handleNotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		file := r.URL.Query().Get("file")
		if file == "" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			io.WriteString(w, livenessText)
			return
		}
		s.files.serve(w, r, file)
	case http.MethodPost:
		s.handleWebhook(w, r)
	default:
		w.Header().Set("Allow", "GET, HEAD, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleWebhook always answers "success" so the provider does not retry;
// problems are logged.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to read callback body")
	} else if s.webhook != nil {
		if err := s.webhook.HandleCallback(r.Context(), body); err != nil {
			s.log.Warn().Err(err).Msg("callback not processed")
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "success")
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{
		"error": "not found",
		"path":  r.URL.Path,
	})
}
