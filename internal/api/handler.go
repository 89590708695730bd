package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/announcer/internal/colorlookup"
	"github.com/eugenenazirov/announcer/internal/settings"
	"github.com/eugenenazirov/announcer/internal/speech"
	"github.com/eugenenazirov/announcer/internal/storage"
	"github.com/eugenenazirov/announcer/internal/venue"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Service is the configuration service behind the web interface.
type Service interface {
	State() (venue.Config, error)
	ColorData(ctx context.Context, cfg venue.Config) *colorlookup.Result
	AddScheduleEntry(ctx context.Context, rawTime, rawType string) (venue.ScheduleEntry, error)
	DeleteScheduleEntry(ctx context.Context, rawTime string) error
	AddCustomType(ctx context.Context, name, template string) (string, error)
	DeleteCustomType(ctx context.Context, name string) (int, error)
	SaveAll(ctx context.Context, form settings.Form) error
	PlayInstant(ctx context.Context, text string) error
}

// Handler wires the configuration service into HTTP handlers.
type Handler struct {
	service Service
	logger  *zap.Logger

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithHandlerLogger sets the logger used for failed requests.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(service Service, opts ...HandlerOption) *Handler {
	h := &Handler{
		service: service,
		logger:  zap.NewNop(),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetState(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.State()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	times := make(map[string]string, len(cfg.Schedule))
	for _, e := range cfg.Schedule.Entries() {
		times[e.Time.String()] = e.Kind.String()
	}
	resp := stateResponse{
		Times:       times,
		CustomTypes: cfg.CustomTypes,
	}
	if res := h.service.ColorData(r.Context(), cfg); res != nil {
		resp.ColorData = &colorData{Color: res.Color, Message: res.Message}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAddTime(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Time == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "Missing time or type", "both time and type are required")
		return
	}

	if _, err := h.service.AddScheduleEntry(r.Context(), req.Time, req.Type); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Time added successfully"})
}

func (h *Handler) handleDeleteTime(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Time == "" {
		writeError(w, http.StatusBadRequest, "Missing time", "time is required")
		return
	}

	if err := h.service.DeleteScheduleEntry(r.Context(), req.Time); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Time deleted successfully"})
}

func (h *Handler) handleAddCustomType(w http.ResponseWriter, r *http.Request) {
	var req customTypeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" || req.Template == "" {
		writeError(w, http.StatusBadRequest, "Missing name or template", "both name and template are required")
		return
	}

	if _, err := h.service.AddCustomType(r.Context(), req.Name, req.Template); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Custom type added successfully"})
}

func (h *Handler) handleDeleteCustomType(w http.ResponseWriter, r *http.Request) {
	var req customTypeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing name", "name is required")
		return
	}

	if _, err := h.service.DeleteCustomType(r.Context(), req.Name); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Custom type deleted successfully"})
}

func (h *Handler) handlePlayInstant(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "Missing announcement text", "text is required")
		return
	}

	if err := h.service.PlayInstant(r.Context(), req.Text); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Announcement played successfully"})
}

func (h *Handler) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse form")
		return
	}
	form, err := settings.ParseForm(r.PostForm)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing form fields", err.Error())
		return
	}

	switch err := h.service.SaveAll(r.Context(), form); {
	case err == nil:
		setFlash(w, flashSuccess, "Configuration saved and announcer restarted successfully!")
	case errors.Is(err, settings.ErrRestartFailed):
		h.logger.Warn("configuration saved without restart", zap.Error(err))
		setFlash(w, flashError, "Configuration saved but the announcer restart failed. Please restart it manually.")
	default:
		h.writeServiceError(w, r, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// decode reads a JSON body or a URL-encoded form into req. It writes the
// error response and returns false when the body cannot be read.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req formRequest) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
			return false
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse form")
			return false
		}
		req.fromForm(r.PostForm)
	}
	req.normalize()
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, venue.ErrValidation):
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
	case errors.Is(err, venue.ErrUnknownType):
		writeError(w, http.StatusBadRequest, "Unknown announcement type", err.Error(),
			"Add the custom type before scheduling it")
	case errors.Is(err, venue.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err.Error())
	case errors.Is(err, speech.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "Speech unavailable", err.Error(),
			"Set AZURE_SPEECH_KEY and AZURE_SPEECH_REGION")
	case errors.Is(err, settings.ErrRestartFailed):
		writeError(w, http.StatusInternalServerError, "Failed to restart announcer", err.Error(),
			"Restart the announcer manually")
	case errors.Is(err, storage.ErrPersistence):
		writeError(w, http.StatusInternalServerError, "Failed to save configuration", err.Error())
	case errors.Is(err, speech.ErrSynthesis):
		writeError(w, http.StatusInternalServerError, "Failed to synthesize speech", err.Error())
	case errors.Is(err, speech.ErrPlayback):
		writeError(w, http.StatusInternalServerError, "Failed to play announcement", err.Error())
	default:
		writeInternalError(w, err)
	}
	h.logger.Warn("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", requestIDFromContext(r.Context())),
		zap.Error(err))
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type stateResponse struct {
	Times       map[string]string `json:"times"`
	CustomTypes map[string]string `json:"custom_types"`
	ColorData   *colorData        `json:"color_data"`
}

type colorData struct {
	Color   string `json:"color"`
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}

