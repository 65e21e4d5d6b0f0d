package adapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/alfredjeanlab/sitesync/internal/delivery"
	"github.com/alfredjeanlab/sitesync/internal/model"
)

const maxWebhookBytes = 1 << 20

// ErrBadEvent is returned for an event whose payload does not match its kind.
var ErrBadEvent = errors.New("malformed event")

// HandleEvent applies ev according to its kind and reports whether the
// local config changed.
func (a *Adapter) HandleEvent(ev model.Event) (bool, error) {
	var (
		changed bool
		err     error
	)
	switch ev.Kind {
	case model.EventConfigUpdated:
		if ev.Config == nil {
			return false, fmt.Errorf("%w: %s without config", ErrBadEvent, ev.Kind)
		}
		changed, err = a.Apply(model.Snapshot{Version: ev.Version, Epoch: ev.Epoch, Config: *ev.Config, UpdatedAt: ev.Timestamp})
	case model.EventThemeUpdated:
		if ev.Theme == nil {
			return false, fmt.Errorf("%w: %s without theme", ErrBadEvent, ev.Kind)
		}
		changed, err = a.ApplyTheme(*ev.Theme, ev.Revision())
	case model.EventModuleToggled:
		if ev.Module == "" || ev.Enabled == nil {
			return false, fmt.Errorf("%w: %s without module or enabled", ErrBadEvent, ev.Kind)
		}
		changed, err = a.ApplyModule(ev.Module, *ev.Enabled, ev.Revision())
	default:
		return false, fmt.Errorf("%w: unknown event %q", ErrBadEvent, ev.Kind)
	}
	if err != nil {
		return false, err
	}
	a.notifyObserver()
	return changed, nil
}

// authenticate checks the shared secret and, when present, the body
// signature.
func (a *Adapter) authenticate(r *http.Request, body []byte) error {
	if a.secret == "" || !delivery.SecretsEqual(a.secret, r.Header.Get(delivery.HeaderSecret)) {
		return ErrAuth
	}
	if sig := r.Header.Get(delivery.HeaderSignature); sig != "" && !delivery.VerifySignature(a.secret, body, sig) {
		return ErrAuth
	}
	return nil
}

// WebhookHandler receives change events pushed by the origin. Requests
// with a bad secret or signature get 401 and are not applied.
func (a *Adapter) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "body too large"})
			return
		}
		if err := a.authenticate(r, body); err != nil {
			a.logger.Warn("rejected webhook", "remote", r.RemoteAddr, "delivery", r.Header.Get(delivery.HeaderDelivery))
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
			return
		}

		var ev model.Event
		if err := json.Unmarshal(body, &ev); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		changed, err := a.HandleEvent(ev)
		switch {
		case errors.Is(err, ErrBadEvent), errors.Is(err, ErrUnknownModule):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		case err != nil:
			a.logger.Error("webhook apply failed", "event", ev.Kind, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "apply failed"})
			return
		}
		a.logger.Debug("webhook applied", "event", ev.Kind, "version", ev.Version, "changed", changed,
			"delivery", r.Header.Get(delivery.HeaderDelivery))
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})
}

// StateHandler serves the applied state as JSON.
func (a *Adapter) StateHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, a.State())
	})
}

// StyleSheetHandler serves the applied theme stylesheet.
func (a *Adapter) StyleSheetHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		_, _ = io.WriteString(w, a.State().StyleSheet)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
