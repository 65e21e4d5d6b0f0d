package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/sitesync/internal/delivery"
	"github.com/alfredjeanlab/sitesync/internal/events"
	"github.com/alfredjeanlab/sitesync/internal/model"
	"github.com/alfredjeanlab/sitesync/internal/service"
	"github.com/alfredjeanlab/sitesync/internal/store/memory"
)

// testEnv wires the origin the way the serve command does, on a memory store.
type testEnv struct {
	server     *Server
	handler    http.Handler
	registry   *delivery.Registry
	dispatcher *delivery.Dispatcher
	tracker    *delivery.Tracker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New(model.Default())
	registry := delivery.NewRegistry(st, delivery.DefaultSubscriberTTL)
	tracker := delivery.NewTracker()
	dispatcher := delivery.NewDispatcher(registry, tracker, time.Second, logger)
	streams := NewStreams()
	t.Cleanup(streams.Close)
	fanout := delivery.NewFanout(dispatcher, events.Discard, logger, streams)
	svc := service.New(st, fanout, service.Options{Logger: logger, RetryBase: time.Millisecond})
	srv := New(svc, registry, tracker, streams)
	return &testEnv{
		server:     srv,
		handler:    srv.NewHTTPHandler(),
		registry:   registry,
		dispatcher: dispatcher,
		tracker:    tracker,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

// webhookReceiver records every callback delivered to it.
type webhookReceiver struct {
	*httptest.Server
	mu     sync.Mutex
	events []model.Event
}

func newWebhookReceiver(t *testing.T) *webhookReceiver {
	t.Helper()
	wr := &webhookReceiver{}
	wr.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev model.Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		wr.mu.Lock()
		wr.events = append(wr.events, ev)
		wr.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(wr.Close)
	return wr
}

func (wr *webhookReceiver) received() []model.Event {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	return append([]model.Event(nil), wr.events...)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/api/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestGetConfig(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "GET", "/api/site-config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("ETag"); !strings.HasPrefix(got, `"v1-`) {
		t.Errorf("ETag = %q", got)
	}
	if got := rec.Header().Get("X-Config-Version"); got != "1" {
		t.Errorf("X-Config-Version = %q", got)
	}
	if got := rec.Header().Get("X-Config-Epoch"); got == "" || got == "0" {
		t.Errorf("X-Config-Epoch = %q", got)
	}
	cfg := decodeBody[model.SiteConfig](t, rec)
	if !model.Equal(cfg, model.Default()) {
		t.Error("config differs from default")
	}
}

func TestGetConfig_NotModified(t *testing.T) {
	env := newTestEnv(t)
	etag := env.do(t, "GET", "/api/site-config", "").Header().Get("ETag")

	tests := []struct {
		name        string
		ifNoneMatch string
		want        int
	}{
		{"current revision", etag, http.StatusNotModified},
		{"same version of another epoch", `"v1"`, http.StatusOK},
		{"other version", `"v2"`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/site-config", nil)
			req.Header.Set("If-None-Match", tt.ifNoneMatch)
			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestGetStylesheet(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/api/site-config/css", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/css; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	want := ":root {\n  --primary: #ff6a3e;\n  --secondary: #ffba43;\n  --headerColor: #1a1a1a;\n}"
	if rec.Body.String() != want {
		t.Errorf("css = %q", rec.Body.String())
	}
}

func TestSaveConfig_EndToEndPrimaryColor(t *testing.T) {
	env := newTestEnv(t)
	hook := newWebhookReceiver(t)
	rec := env.do(t, "POST", "/api/webhooks/subscribe", `{"url":"`+hook.URL+`","secret":"s3cret"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("subscribe = %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, "POST", "/api/site-config/save", `{"theme":{"primaryColor":"#00ff00"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save = %d %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[saveResponse](t, rec)
	if !resp.Success || resp.Version != 2 || !resp.Changed {
		t.Errorf("save response = %+v", resp)
	}
	if !strings.Contains(resp.CSS, "--primary: #00ff00;") {
		t.Errorf("css = %q", resp.CSS)
	}

	rec = env.do(t, "GET", "/api/site-config", "")
	cfg := decodeBody[model.SiteConfig](t, rec)
	if cfg.Theme.PrimaryColor != "#00ff00" || cfg.Theme.SecondaryColor != "#ffba43" {
		t.Errorf("theme = %+v", cfg.Theme)
	}
	rec = env.do(t, "GET", "/api/site-config/css", "")
	if !strings.Contains(rec.Body.String(), "--primary: #00ff00;") {
		t.Errorf("css endpoint = %q", rec.Body.String())
	}

	env.dispatcher.Wait()
	evs := hook.received()
	if len(evs) != 1 || evs[0].Kind != model.EventThemeUpdated || evs[0].Theme.PrimaryColor != "#00ff00" {
		t.Errorf("callbacks = %+v", evs)
	}
}

func TestSaveConfig_ModuleFlagIsToggleEvent(t *testing.T) {
	env := newTestEnv(t)
	hook := newWebhookReceiver(t)
	if _, err := env.registry.Register(t.Context(), hook.URL, "s"); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, "POST", "/api/site-config/save", `{"modules":{"crm":{"enabled":false}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save = %d %s", rec.Code, rec.Body.String())
	}
	if resp := decodeBody[saveResponse](t, rec); !resp.Changed || resp.Version != 2 {
		t.Errorf("save response = %+v", resp)
	}

	env.dispatcher.Wait()
	evs := hook.received()
	if len(evs) != 1 {
		t.Fatalf("got %d callbacks, want exactly 1: %+v", len(evs), evs)
	}
	ev := evs[0]
	if ev.Kind != model.EventModuleToggled || ev.Module != "crm" || ev.Enabled == nil || *ev.Enabled {
		t.Errorf("callback = %+v", ev)
	}
	if ev.Version != 2 || ev.Config != nil || ev.Theme != nil {
		t.Errorf("callback carries version %d, config %v, theme %v", ev.Version, ev.Config != nil, ev.Theme != nil)
	}
}

func TestSaveConfig_Errors(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct {
		name  string
		body  string
		code  int
		field string
	}{
		{"Empty", "", http.StatusBadRequest, "body"},
		{"Malformed", `{"theme":`, http.StatusBadRequest, ""},
		{"UnknownTopLevel", `{"colour":"red"}`, http.StatusBadRequest, "colour"},
		{"UnknownModule", `{"modules":{"teleporter":{"enabled":true}}}`, http.StatusBadRequest, "modules.teleporter"},
		{"BadColor", `{"theme":{"primaryColor":"green"}}`, http.StatusBadRequest, "theme.primaryColor"},
		{"WrongType", `{"features":{"showPricing":"yes"}}`, http.StatusBadRequest, "features.showPricing"},
		{"UnknownModuleField", `{"modules":{"crm":{"nope":1}}}`, http.StatusBadRequest, "modules.crm.nope"},
		{"NotAnObject", `[]`, http.StatusBadRequest, "body"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, "POST", "/api/site-config/save", tc.body)
			if rec.Code != tc.code {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.code, rec.Body.String())
			}
			resp := decodeBody[errorResponse](t, rec)
			if resp.Success || resp.Error == "" {
				t.Errorf("response = %+v", resp)
			}
			if tc.field == "" {
				return
			}
			found := false
			for _, f := range resp.Fields {
				if f.Field == tc.field {
					found = true
				}
			}
			if !found {
				t.Errorf("fields = %+v, want one naming %q", resp.Fields, tc.field)
			}
		})
	}

	// Nothing above may have consumed a version.
	rec := env.do(t, "GET", "/api/site-config", "")
	if rec.Header().Get("X-Config-Version") != "1" {
		t.Errorf("version = %s after rejected saves", rec.Header().Get("X-Config-Version"))
	}
}

func TestToggleModule_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	hook := newWebhookReceiver(t)
	if _, err := env.registry.Register(t.Context(), hook.URL, "s"); err != nil {
		t.Fatal(err)
	}

	rec := env.do(t, "POST", "/api/site-config/modules/crm/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle = %d %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[toggleResponse](t, rec)
	if !resp.Success || resp.Enabled || resp.Locked || resp.Version != 2 {
		t.Errorf("toggle response = %+v", resp)
	}

	env.dispatcher.Wait()
	evs := hook.received()
	if len(evs) != 1 {
		t.Fatalf("got %d callbacks, want exactly 1", len(evs))
	}
	if evs[0].Kind != model.EventModuleToggled || evs[0].Module != "crm" || evs[0].Enabled == nil || *evs[0].Enabled {
		t.Errorf("callback = %+v", evs[0])
	}
}

func TestToggleModule_LockedAndUnknown(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/site-config/modules/invoicing/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("locked toggle = %d", rec.Code)
	}
	resp := decodeBody[toggleResponse](t, rec)
	if resp.Success || !resp.Locked || resp.Enabled || resp.Version != 1 {
		t.Errorf("locked toggle response = %+v", resp)
	}

	rec = env.do(t, "POST", "/api/site-config/modules/nope/toggle", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown toggle = %d, want 404", rec.Code)
	}
}

func TestListModules(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/api/site-config/modules", "")
	cat := decodeBody[service.ModuleCatalog](t, rec)
	if cat.ActiveCount != 4 || len(cat.Active) != 4 || len(cat.Locked) != 4 {
		t.Errorf("catalog = %+v", cat)
	}
	if cat.Active[0].Key != "projectEstimator" || cat.Locked[3].Key != "invoicing" {
		t.Errorf("order = %s .. %s", cat.Active[0].Key, cat.Locked[3].Key)
	}
}

func TestSubscribeLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, "POST", "/api/webhooks/subscribe", `{"url":"http://client.example/hook","secret":"s"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("subscribe = %d %s", rec.Code, rec.Body.String())
	}
	sub := decodeBody[subscribeResponse](t, rec)
	if sub.SubscriberID == "" || sub.ExpiresAt == nil {
		t.Fatalf("subscribe response = %+v", sub)
	}

	rec = env.do(t, "GET", "/api/webhooks/subscribers", "")
	var list struct {
		Subscribers []struct {
			ID     string              `json:"id"`
			URL    string              `json:"url"`
			Secret string              `json:"secret"`
			Stats  model.DeliveryStats `json:"stats"`
		} `json:"subscribers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Subscribers) != 1 || list.Subscribers[0].ID != sub.SubscriberID || list.Subscribers[0].URL != "http://client.example/hook" {
		t.Errorf("subscribers = %+v", list.Subscribers)
	}
	if list.Subscribers[0].Secret != "" {
		t.Error("secret leaked in subscriber listing")
	}

	for i := 0; i < 2; i++ {
		rec = env.do(t, "DELETE", "/api/webhooks/subscribe/"+sub.SubscriberID, "")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("unsubscribe #%d = %d", i+1, rec.Code)
		}
	}
	rec = env.do(t, "GET", "/api/webhooks/subscribers", "")
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"subscribers":[]`)) {
		t.Errorf("after unsubscribe = %s", rec.Body.String())
	}
}

func TestSubscribe_Invalid(t *testing.T) {
	env := newTestEnv(t)
	for _, body := range []string{
		`{"url":"not a url","secret":"s"}`,
		`{"url":"http://a/hook"}`,
		`{"url":"http://a/hook","secret":"s","extra":1}`,
		``,
	} {
		rec := env.do(t, "POST", "/api/webhooks/subscribe", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("subscribe %q = %d, want 400", body, rec.Code)
		}
	}
}
