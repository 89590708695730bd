package api

import (
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/announcer/internal/venue"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/config.html"))

const (
	flashCookie  = "announcer_flash"
	flashSuccess = "success"
	flashError   = "error"
)

type flash struct {
	Kind    string
	Message string
}

type pageData struct {
	Config      venue.Config
	Times       string
	CustomTypes string
	TypeOptions []string
	Flash       *flash
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.State()
	if err != nil {
		http.Error(w, "failed to load configuration", http.StatusInternalServerError)
		h.logger.Error("failed to load configuration", zap.Error(err))
		return
	}

	data := pageData{
		Config:      cfg,
		Times:       venue.FormatScheduleText(cfg.Schedule),
		CustomTypes: venue.FormatCustomTypesText(cfg.CustomTypes),
		TypeOptions: typeOptions(cfg),
		Flash:       takeFlash(w, r),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger.Error("failed to render configuration page", zap.Error(err))
	}
}

// typeOptions lists the types offered when adding a schedule entry.
func typeOptions(cfg venue.Config) []string {
	var out []string
	for _, k := range venue.BuiltinKinds() {
		out = append(out, k.String())
	}
	names := make([]string, 0, len(cfg.CustomTypes))
	for name := range cfg.CustomTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, venue.CustomKind(name).String())
	}
	return out
}

func setFlash(w http.ResponseWriter, kind, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(kind + "|" + message),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash returns the pending flash message and clears it.
func takeFlash(w http.ResponseWriter, r *http.Request) *flash {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return nil
	}
	kind, message, ok := strings.Cut(raw, "|")
	if !ok || message == "" {
		return nil
	}
	if kind != flashSuccess {
		kind = flashError
	}
	return &flash{Kind: kind, Message: message}
}
