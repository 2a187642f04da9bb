package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/sip-mqtt/internal/infrastructure/config"
	"github.com/nerrad567/sip-mqtt/internal/infrastructure/logging"
	"github.com/nerrad567/sip-mqtt/internal/infrastructure/mqtt"
	"github.com/nerrad567/sip-mqtt/internal/schedule"
	"github.com/nerrad567/sip-mqtt/internal/settings"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

// =============================================================================
// Fakes
// =============================================================================

type fakeSettings struct {
	mu    sync.Mutex
	doc   settings.Document
	saved []map[string]string
}

func (f *fakeSettings) Document() settings.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.doc.Clone()
}

func (f *fakeSettings) Save(_ context.Context, values map[string]string) error {
	merged := f.Document()
	for k, v := range values {
		merged[k] = v
	}
	if err := settings.Validate(merged); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.doc = merged
	f.saved = append(f.saved, values)
	return nil
}

type fakeSession struct{}

func (fakeSession) State() mqtt.State    { return mqtt.StateConnected }
func (fakeSession) Generation() uint64   { return 2 }
func (fakeSession) Disabled() bool       { return false }
func (fakeSession) Subscriptions() []string {
	return []string{"SIP/schedule"}
}

func (fakeSession) Settings() mqtt.BrokerConfig {
	return mqtt.BrokerConfig{Host: "broker.local", Port: 1883, KeepAlive: 60, StatusTopic: "SIP/status", ClientID: "SIP"}
}

type fakeSchedule struct{}

func (fakeSchedule) Topic() string    { return "SIP/schedule" }
func (fakeSchedule) Subscribed() bool { return true }

type fakeRuns struct {
	err   error
	limit int
}

func (f *fakeRuns) Recent(_ context.Context, limit int) ([]schedule.JournalEntry, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []schedule.JournalEntry{{
		ID:         1,
		Topic:      "SIP/schedule",
		Durations:  []int{60, 0},
		ReceivedAt: time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC),
	}}, nil
}

// =============================================================================
// Helpers
// =============================================================================

func testServer(t *testing.T) (*httptest.Server, *fakeSettings, *fakeRuns) {
	t.Helper()
	ts, store, runs, _ := testServerWithAudit(t, nil)
	return ts, store, runs
}

func testServerWithAudit(t *testing.T, trail AuditTrail) (*httptest.Server, *fakeSettings, *fakeRuns, *Server) {
	t.Helper()

	store := &fakeSettings{doc: settings.Defaults{
		BrokerHost:    "broker.local",
		BrokerPort:    1883,
		BrokerAlive:   60,
		PublishUpDown: "SIP/status",
		ScheduleTopic: "SIP/schedule",
	}.Document()}
	runs := &fakeRuns{}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Auth: config.APIAuthConfig{
				Username:       "admin",
				Password:       "hunter2",
				JWTSecret:      testSecret,
				AccessTokenTTL: 5,
			},
			CORS: config.CORSConfig{AllowedOrigins: []string{"http://panel.local"}},
		},
		Logger:   logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test"),
		Settings: store,
		Session:  fakeSession{},
		Schedule: fakeSchedule{},
		Runs:     runs,
		Audit:    trail,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)
	return ts, store, runs, srv
}

func do(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func login(t *testing.T, ts *httptest.Server) string {
	t.Helper()

	resp := do(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", loginRequest{Username: "admin", Password: "hunter2"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var out loginResponse
	decode(t, resp, &out)
	if out.AccessToken == "" || out.TokenType != "Bearer" {
		t.Fatalf("login response = %+v", out)
	}
	return out.AccessToken
}

// =============================================================================
// Tests
// =============================================================================

func TestNew_RequiresDeps(t *testing.T) {
	log := logging.Default()

	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without settings should fail")
	}
	if _, err := New(Deps{Logger: log, Settings: &fakeSettings{}}); err == nil {
		t.Error("New() without session should fail")
	}
}

func TestHealth(t *testing.T) {
	ts, _, _ := testServer(t)

	resp := do(t, http.MethodGet, ts.URL+"/api/v1/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	var body map[string]any
	decode(t, resp, &body)
	if body["mqtt"] != "connected" {
		t.Errorf("mqtt = %v, want connected", body["mqtt"])
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ts, _, _ := testServer(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"wrong password", loginRequest{Username: "admin", Password: "nope"}, http.StatusUnauthorized},
		{"wrong user", loginRequest{Username: "root", Password: "hunter2"}, http.StatusUnauthorized},
		{"not json", "admin:hunter2", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, ts.URL+"/api/v1/auth/login", "", tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	ts, _, _ := testServer(t)

	for _, token := range []string{"", "garbage"} {
		resp := do(t, http.MethodGet, ts.URL+"/api/v1/settings", token, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, resp.StatusCode)
		}
	}
}

func TestSettings_GetAndPut(t *testing.T) {
	ts, store, _ := testServer(t)
	token := login(t, ts)

	resp := do(t, http.MethodGet, ts.URL+"/api/v1/settings", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET status = %d", resp.StatusCode)
	}
	var doc map[string]string
	decode(t, resp, &doc)
	if doc[settings.KeyBrokerHost] != "broker.local" {
		t.Errorf("broker_host = %q", doc[settings.KeyBrokerHost])
	}

	resp = do(t, http.MethodPut, ts.URL+"/api/v1/settings", token, map[string]string{
		settings.KeyBrokerHost: "mqtt.garden",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}
	decode(t, resp, &doc)
	if doc[settings.KeyBrokerHost] != "mqtt.garden" {
		t.Errorf("broker_host after PUT = %q", doc[settings.KeyBrokerHost])
	}
	if len(store.saved) != 1 {
		t.Errorf("saves = %d, want 1", len(store.saved))
	}
}

func TestSettings_PutRejected(t *testing.T) {
	ts, store, _ := testServer(t)
	token := login(t, ts)

	resp := do(t, http.MethodPut, ts.URL+"/api/v1/settings", token, map[string]string{
		settings.KeyBrokerPort: "70",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}

	var apiErr Error
	decode(t, resp, &apiErr)
	if _, ok := apiErr.Fields[settings.KeyBrokerPort]; !ok {
		t.Errorf("fields = %v, want broker_port", apiErr.Fields)
	}
	if store.Document()[settings.KeyBrokerPort] != "1883" {
		t.Error("rejected submission changed the stored port")
	}
}

func TestSettings_PutEmpty(t *testing.T) {
	ts, _, _ := testServer(t)
	token := login(t, ts)

	resp := do(t, http.MethodPut, ts.URL+"/api/v1/settings", token, map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestMQTTStatus(t *testing.T) {
	ts, _, _ := testServer(t)
	token := login(t, ts)

	resp := do(t, http.MethodGet, ts.URL+"/api/v1/mqtt", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var status mqttStatusResponse
	decode(t, resp, &status)
	if status.State != "connected" || status.Broker != "broker.local:1883" || status.Generation != 2 {
		t.Errorf("status = %+v", status)
	}
	if len(status.Subscriptions) != 1 {
		t.Errorf("subscriptions = %v", status.Subscriptions)
	}
}

func TestScheduleRuns(t *testing.T) {
	ts, _, runs := testServer(t)
	token := login(t, ts)

	resp := do(t, http.MethodGet, ts.URL+"/api/v1/schedule/runs?limit=5", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if runs.limit != 5 {
		t.Errorf("limit passed = %d, want 5", runs.limit)
	}

	var body struct {
		Runs  []runResponse `json:"runs"`
		Count int           `json:"count"`
	}
	decode(t, resp, &body)
	if body.Count != 1 || body.Runs[0].Topic != "SIP/schedule" {
		t.Errorf("body = %+v", body)
	}

	resp = do(t, http.MethodGet, ts.URL+"/api/v1/schedule/runs?limit=0", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want 400", resp.StatusCode)
	}

	runs.err = errors.New("disk I/O error")
	resp = do(t, http.MethodGet, ts.URL+"/api/v1/schedule/runs", token, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("failing journal status = %d, want 500", resp.StatusCode)
	}
}

func TestScheduleStatus(t *testing.T) {
	ts, _, _ := testServer(t)
	token := login(t, ts)

	resp := do(t, http.MethodGet, ts.URL+"/api/v1/schedule", token, nil)
	var status scheduleStatusResponse
	decode(t, resp, &status)
	if !status.Enabled || !status.Subscribed || status.Topic != "SIP/schedule" {
		t.Errorf("status = %+v", status)
	}
}

func TestCORS(t *testing.T) {
	ts, _, _ := testServer(t)

	for origin, want := range map[string]string{
		"http://panel.local": "http://panel.local",
		"http://evil.local":  "",
	} {
		req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/settings", nil)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("OPTIONS error = %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("%s: status = %d, want 204", origin, resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != want {
			t.Errorf("%s: allow-origin = %q, want %q", origin, got, want)
		}
	}
}

func TestStartAndClose(t *testing.T) {
	srv, err := New(Deps{
		Config:   config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:   logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test"),
		Settings: &fakeSettings{doc: settings.Document{}},
		Session:  fakeSession{},
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		t.Fatalf("GET health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !strings.HasPrefix(srv.Addr(), "127.0.0.1:") {
		t.Errorf("Addr() = %q", srv.Addr())
	}
}

func TestPanelMounted(t *testing.T) {
	srv, err := New(Deps{
		Logger:   logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test"),
		Settings: &fakeSettings{doc: settings.Document{}},
		Session:  fakeSession{},
		Panel: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("panel"))
		}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	resp := do(t, http.MethodGet, ts.URL+"/index.html", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /index.html status = %d", resp.StatusCode)
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if buf.String() != "panel" {
		t.Errorf("body = %q, want panel handler output", buf.String())
	}

	// API routes still win over the panel catch-all.
	resp = do(t, http.MethodGet, ts.URL+"/api/v1/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /api/v1/health status = %d", resp.StatusCode)
	}
}
