package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/announcer/internal/colorlookup"
	"github.com/eugenenazirov/announcer/internal/settings"
	"github.com/eugenenazirov/announcer/internal/speech"
	"github.com/eugenenazirov/announcer/internal/storage"
	"github.com/eugenenazirov/announcer/internal/venue"
)

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

type fakeRestarter struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (r *fakeRestarter) Restart(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

type fakeSpeaker struct {
	mu   sync.Mutex
	err  error
	said []string
}

func (s *fakeSpeaker) Speak(_ context.Context, u speech.Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.said = append(s.said, u.Text)
	return s.err
}

func testVenueConfig() venue.Config {
	cfg := venue.Default()
	cfg.Database = venue.Database{Server: "db", Name: "tickets", Username: "sa", Password: "secret"}
	cfg.TTS.VoiceID = "en-US-AvaNeural"
	cfg.Templates.FiftyFive = "{color} wristbands, five minutes."
	cfg.Templates.Hour = "It's {time}."
	cfg.Schedule[venue.MustParseClock("10:55")] = venue.Kind{Tag: venue.FiftyFive}
	cfg.Schedule[venue.MustParseClock("11:00")] = venue.Kind{Tag: venue.HourChange}
	return cfg
}

func newTestService(t *testing.T, opts ...settings.Option) (*settings.Service, *storage.MemoryStorage, *fakeRestarter) {
	t.Helper()

	store := storage.NewMemoryStorage(testVenueConfig())
	restarter := &fakeRestarter{}
	opts = append([]settings.Option{settings.WithLogger(zaptest.NewLogger(t))}, opts...)
	return settings.New(store, restarter, opts...), store, restarter
}

func setupTestRouter(t *testing.T, opts ...settings.Option) (http.Handler, *storage.MemoryStorage, *fakeRestarter) {
	t.Helper()

	svc, store, restarter := newTestService(t, opts...)
	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))
	handler := NewHandler(svc, WithClock(clock.Now), WithHandlerLogger(zaptest.NewLogger(t)))
	router := NewRouter(handler, zaptest.NewLogger(t), WithLogging(false))
	return router, store, restarter
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func postForm(router http.Handler, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var body T
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := decodeBody[healthResponse](t, rec)
	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if want := time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC); !body.Timestamp.Equal(want) {
		t.Fatalf("expected timestamp %s, got %s", want, body.Timestamp)
	}
}

func TestGetState(t *testing.T) {
	router, _, _ := setupTestRouter(t, settings.WithLookupOpener(func(venue.Database) (colorlookup.Lookup, error) {
		return colorlookup.Static{Message: "Red wristbands will be expiring at 11:00!"}, nil
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get_state", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := decodeBody[stateResponse](t, rec)
	if body.Times["10:55"] != ":55" || body.Times["11:00"] != "hour" {
		t.Fatalf("unexpected times: %v", body.Times)
	}
	if body.CustomTypes == nil {
		t.Fatalf("expected custom_types to be an object")
	}
	if body.ColorData == nil || body.ColorData.Color != "Red" {
		t.Fatalf("expected color data Red, got %+v", body.ColorData)
	}
}

func TestGetStateWithoutColor(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get_state", nil))

	if !strings.Contains(rec.Body.String(), `"color_data":null`) {
		t.Fatalf("expected null color data, got %s", rec.Body.String())
	}
}

func TestAddAndDeleteTime(t *testing.T) {
	router, store, restarter := setupTestRouter(t)

	rec := postJSON(t, router, "/add_time", map[string]string{"time": "09:30", "type": "hour"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if msg := decodeBody[messageResponse](t, rec).Message; msg != "Time added successfully" {
		t.Fatalf("unexpected message %q", msg)
	}

	rec = postForm(router, "/delete_time", url.Values{"time": {"09:30"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Schedule) != 2 {
		t.Fatalf("expected original schedule, got %v", cfg.Schedule)
	}
	if restarter.calls != 2 {
		t.Fatalf("expected two restarts, got %d", restarter.calls)
	}
}

func TestAddTimeErrors(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	tests := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{"MissingTime", map[string]string{"type": "hour"}, http.StatusBadRequest},
		{"MissingType", map[string]string{"time": "09:30"}, http.StatusBadRequest},
		{"MalformedTime", map[string]string{"time": "25:00", "type": "hour"}, http.StatusBadRequest},
		{"UnknownCustomType", map[string]string{"time": "09:30", "type": "custom:weather"}, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, router, "/add_time", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			if decodeBody[errorResponse](t, rec).Error == "" {
				t.Fatalf("expected error message")
			}
		})
	}
}

func TestAddTimeInvalidJSON(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/add_time", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestDeleteTimeNotFound(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := postJSON(t, router, "/delete_time", map[string]string{"time": "07:00"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestCustomTypeLifecycle(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := postJSON(t, router, "/add_custom_type", map[string]string{"name": "weather", "template": "The weather is {weather}."})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, router, "/add_time", map[string]string{"time": "12:30", "type": "custom:weather"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/get_state", nil))
	state := decodeBody[stateResponse](t, rec)
	if state.CustomTypes["weather"] != "The weather is {weather}." || state.Times["12:30"] != "custom:weather" {
		t.Fatalf("expected weather type in state, got %+v", state)
	}

	rec = postJSON(t, router, "/delete_custom_type", map[string]string{"name": "weather"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	rec = postJSON(t, router, "/delete_custom_type", map[string]string{"name": "weather"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	rec = postJSON(t, router, "/add_custom_type", map[string]string{"name": "weather"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestRestartFailureReturns500(t *testing.T) {
	router, store, restarter := setupTestRouter(t)
	restarter.err = errors.New("unit not found")

	rec := postJSON(t, router, "/add_time", map[string]string{"time": "09:30", "type": "ad"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
	body := decodeBody[errorResponse](t, rec)
	if !strings.Contains(body.Details, "configuration saved") {
		t.Fatalf("expected details to state the config was saved, got %q", body.Details)
	}

	cfg, _ := store.Load()
	if _, ok := cfg.Schedule[venue.MustParseClock("09:30")]; !ok {
		t.Fatalf("expected entry to be persisted")
	}
}

func saveValues() url.Values {
	return url.Values{
		"db_server":          {"db.local"},
		"db_name":            {"tickets"},
		"db_username":        {"sa"},
		"db_password":        {"secret"},
		"fiftyfive_template": {"{color} wristbands."},
		"hour_template":      {"It's {time}."},
		"voice_id":           {"en-US-AvaNeural"},
		"output_format":      {"wav"},
		"times":              {"08:00 = rules\n09:00 = ad"},
		"customTypes":        {""},
	}
}

func TestSaveConfigRedirectsWithFlash(t *testing.T) {
	router, store, _ := setupTestRouter(t)

	rec := postForm(router, "/save_config", saveValues())
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Fatalf("expected redirect to /, got %q", loc)
	}

	cfg, _ := store.Load()
	if cfg.TTS.OutputFormat != venue.FormatWAV || len(cfg.Schedule) != 2 {
		t.Fatalf("expected saved config, got %+v", cfg)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != flashCookie {
		t.Fatalf("expected flash cookie, got %v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	page := httptest.NewRecorder()
	router.ServeHTTP(page, req)
	if !strings.Contains(page.Body.String(), "Configuration saved and announcer restarted successfully!") {
		t.Fatalf("expected flash message on page")
	}
}

func TestSaveConfigErrors(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	missing := saveValues()
	missing.Del("times")
	if rec := postForm(router, "/save_config", missing); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for missing field, got %d", rec.Code)
	}

	invalid := saveValues()
	invalid.Set("times", "08:00 = custom:weather")
	if rec := postForm(router, "/save_config", invalid); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for unresolved type, got %d", rec.Code)
	}
}

func TestSaveConfigRestartFailureStillRedirects(t *testing.T) {
	router, _, restarter := setupTestRouter(t)
	restarter.err = errors.New("no announcer running")

	rec := postForm(router, "/save_config", saveValues())
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected flash cookie")
	}
	value, _ := url.QueryUnescape(cookies[0].Value)
	if !strings.HasPrefix(value, flashError+"|") {
		t.Fatalf("expected error flash, got %q", value)
	}
}

func TestIndexRendersConfig(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{"10:55 = :55", "11:00 = hour", `value="tickets"`, `<option value="rules">`} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected page to contain %q", want)
		}
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestPlayInstant(t *testing.T) {
	speaker := &fakeSpeaker{}
	router, _, _ := setupTestRouter(t, settings.WithSpeaker(speaker))

	rec := postJSON(t, router, "/play_instant", map[string]string{"text": "The pool closes in ten minutes."})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(speaker.said) != 1 || speaker.said[0] != "The pool closes in ten minutes." {
		t.Fatalf("unexpected utterances %v", speaker.said)
	}

	if rec := postJSON(t, router, "/play_instant", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}

	speaker.err = speech.ErrSynthesis
	if rec := postJSON(t, router, "/play_instant", map[string]string{"text": "hi"}); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rec.Code)
	}
}

func TestPlayInstantUnavailable(t *testing.T) {
	router, _, _ := setupTestRouter(t)

	rec := postJSON(t, router, "/play_instant", map[string]string{"text": "hi"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rec.Code)
	}
}
