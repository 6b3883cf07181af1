package theme

import (
	"encoding/json"
	"net/http"
)

// Handler serves theme stylesheets over HTTP for the preview server.
type Handler struct {
	registry *Registry
}

func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// HandleThemeCSS serves the stylesheet for ?name= and optional ?scheme=.
// Without parameters it serves the first theme in registry order.
func (h *Handler) HandleThemeCSS(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		if names := h.registry.List(); len(names) > 0 {
			name = names[0]
		}
	}
	if h.registry.Get(name) == nil {
		http.Error(w, "theme not found", http.StatusNotFound)
		return
	}

	scheme := r.URL.Query().Get("scheme")
	css := h.registry.CSS(name, scheme)
	if css == "" && scheme != "" {
		http.Error(w, "scheme not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(css))
}

// HandleSchemes returns the schemes of a theme as JSON.
func (h *Handler) HandleSchemes(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("theme")
	if name == "" {
		http.Error(w, "theme parameter required", http.StatusBadRequest)
		return
	}

	if h.registry.Get(name) == nil {
		http.Error(w, "theme not found", http.StatusNotFound)
		return
	}

	type schemeResponse struct {
		Name    string `json:"name"`
		Display string `json:"display"`
		Accent  string `json:"accent,omitempty"`
		Border  bool   `json:"border,omitempty"`
	}

	schemes := h.registry.Schemes(name)
	resp := make([]schemeResponse, 0, len(schemes))
	for _, s := range schemes {
		display := s.Display
		if display == "" {
			display = titleize(s.Name)
		}
		resp = append(resp, schemeResponse{
			Name:    s.Name,
			Display: display,
			Accent:  s.Accent,
			Border:  s.Border,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode schemes", http.StatusInternalServerError)
	}
}
