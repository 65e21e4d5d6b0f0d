package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/alfredjeanlab/sitesync/internal/model"
)

type subscribeRequest struct {
	URL    string `json:"url"`
	Secret string `json:"secret"`
}

type subscribeResponse struct {
	SubscriberID string     `json:"subscriberId"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// handleSubscribe handles POST /api/webhooks/subscribe.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	var req subscribeRequest
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "request body is required")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	sub, err := s.registry.Register(r.Context(), req.URL, req.Secret)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, subscribeResponse{SubscriberID: sub.ID, ExpiresAt: sub.ExpiresAt})
}

// handleUnsubscribe handles DELETE /api/webhooks/subscribe/{id}. Unknown ids
// succeed the same way known ones do.
func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.Unregister(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	s.tracker.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

type subscriberView struct {
	*model.Subscriber
	Stats model.DeliveryStats `json:"stats"`
}

// handleListSubscribers handles GET /api/webhooks/subscribers.
func (s *Server) handleListSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := s.registry.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	views := make([]subscriberView, 0, len(subs))
	for _, sub := range subs {
		views = append(views, subscriberView{Subscriber: sub, Stats: s.tracker.Stats(sub.ID)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscribers": views})
}
