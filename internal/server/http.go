package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/service"
	"github.com/alfredjeanlab/sitesync/internal/store"
)

// maxBodyBytes bounds save and subscribe request bodies.
const maxBodyBytes = 1 << 20

// NewHTTPHandler returns an http.Handler with all routes registered.
func (s *Server) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/site-config", s.handleGetConfig)
	mux.HandleFunc("GET /api/site-config/css", s.handleGetStylesheet)
	mux.HandleFunc("POST /api/site-config/save", s.handleSaveConfig)
	mux.HandleFunc("GET /api/site-config/modules", s.handleListModules)
	mux.HandleFunc("POST /api/site-config/modules/{key}/toggle", s.handleToggleModule)
	mux.HandleFunc("GET /api/site-config/stream", s.handleEventStream)
	mux.HandleFunc("GET /api/site-config/ws", s.handleWebSocket)
	mux.HandleFunc("POST /api/webhooks/subscribe", s.handleSubscribe)
	mux.HandleFunc("DELETE /api/webhooks/subscribe/{id}", s.handleUnsubscribe)
	mux.HandleFunc("GET /api/webhooks/subscribers", s.handleListSubscribers)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return CORSMiddleware(mux)
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CORSMiddleware allows any origin, answering preflight requests directly.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Expose-Headers", "ETag, X-Config-Version, X-Config-Epoch")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
				h.Set("Access-Control-Allow-Headers", req)
			} else {
				h.Set("Access-Control-Allow-Headers", "Content-Type")
			}
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool               `json:"success"`
	Error   string             `json:"error"`
	Fields  []model.FieldError `json:"fields,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps service and store errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: ve.Errors})
	case errors.Is(err, service.ErrUnknownModule):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		slog.Error("store unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, "config store unavailable")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
