package api

import (
	"net/url"
	"strings"
)

// formRequest is a request body accepted as JSON or as a URL-encoded form.
type formRequest interface {
	fromForm(values url.Values)
	normalize()
}

type timeRequest struct {
	Time string `json:"time"`
	Type string `json:"type"`
}

func (r *timeRequest) fromForm(v url.Values) {
	r.Time, r.Type = v.Get("time"), v.Get("type")
}

func (r *timeRequest) normalize() {
	r.Time, r.Type = strings.TrimSpace(r.Time), strings.TrimSpace(r.Type)
}

type customTypeRequest struct {
	Name     string `json:"name"`
	Template string `json:"template"`
}

func (r *customTypeRequest) fromForm(v url.Values) {
	r.Name, r.Template = v.Get("name"), v.Get("template")
}

func (r *customTypeRequest) normalize() {
	r.Name, r.Template = strings.TrimSpace(r.Name), strings.TrimSpace(r.Template)
}

type playRequest struct {
	Text string `json:"text"`
}

func (r *playRequest) fromForm(v url.Values) {
	r.Text = v.Get("text")
}

func (r *playRequest) normalize() {
	r.Text = strings.TrimSpace(r.Text)
}
