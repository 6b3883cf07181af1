package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"themectl/model"
	"themectl/storage"
	"themectl/switcher"
	"themectl/theme"
)

// ApplyFunc performs a theme switch on behalf of an API client.
type ApplyFunc func(ctx context.Context, themeName, schemeName string, trigger model.SwitchTrigger) error

// CurrentFunc reports the currently applied theme.
type CurrentFunc func() model.Applied

// Server exposes the preview API: theme listing, stylesheet delivery,
// apply/revert, history, and the live-reload WebSocket.
type Server struct {
	registry *theme.Registry
	store    *storage.Store
	apply    ApplyFunc
	current  CurrentFunc
	logger   *zap.Logger
	hub      *ReloadHub
	upgrader websocket.Upgrader
}

func NewServer(registry *theme.Registry, store *storage.Store, apply ApplyFunc, current CurrentFunc, logger *zap.Logger) *Server {
	return &Server{
		registry: registry,
		store:    store,
		apply:    apply,
		current:  current,
		logger:   logger,
		hub:      NewReloadHub(),
		upgrader: websocket.Upgrader{
			// Preview pages are served from this same process on localhost.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/themes", s.handleThemes)
	mux.HandleFunc("/api/current", s.handleCurrent)
	mux.HandleFunc("/api/apply", s.handleApply)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/ws", s.handleWS)
}

// BroadcastReload notifies all connected preview pages that the active
// stylesheet changed.
func (s *Server) BroadcastReload(themeName, schemeName string) {
	s.hub.Broadcast(map[string]interface{}{
		"type":   "reload",
		"theme":  themeName,
		"scheme": schemeName,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type themeResponse struct {
	Name    string           `json:"name"`
	Display string           `json:"display"`
	Schemes []schemeResponse `json:"schemes,omitempty"`
}

type schemeResponse struct {
	Name    string `json:"name"`
	Display string `json:"display"`
	Accent  string `json:"accent,omitempty"`
	Border  bool   `json:"border,omitempty"`
}

func (s *Server) handleThemes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	names := s.registry.List()
	resp := make([]themeResponse, 0, len(names))
	for _, name := range names {
		tr := themeResponse{
			Name:    name,
			Display: s.registry.DisplayName(name),
		}
		for _, sch := range s.registry.Schemes(name) {
			display := sch.Display
			if display == "" {
				display = sch.Name
			}
			tr.Schemes = append(tr.Schemes, schemeResponse{
				Name:    sch.Name,
				Display: display,
				Accent:  sch.Accent,
				Border:  sch.Border,
			})
		}
		resp = append(resp, tr)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.current())
}

type applyRequest struct {
	Theme  string `json:"theme"`
	Scheme string `json:"scheme,omitempty"`
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Theme == "" {
		http.Error(w, "theme is required", http.StatusBadRequest)
		return
	}

	if err := s.apply(r.Context(), req.Theme, req.Scheme, model.TriggerAPI); err != nil {
		var unknownTheme *switcher.UnknownThemeError
		var unknownScheme *switcher.UnknownSchemeError
		switch {
		case errors.As(err, &unknownTheme), errors.As(err, &unknownScheme):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			s.logger.Error("apply failed", zap.String("theme", req.Theme), zap.Error(err))
			http.Error(w, "apply failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, s.current())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	now := time.Now()
	from := now.AddDate(0, 0, -30)
	if q := r.URL.Query().Get("since"); q != "" {
		t, err := time.Parse(time.RFC3339, q)
		if err != nil {
			http.Error(w, "invalid since parameter, want RFC3339", http.StatusBadRequest)
			return
		}
		from = t
	}

	records, err := s.store.ListRecords(from, now)
	if err != nil {
		s.logger.Error("list history failed", zap.Error(err))
		http.Error(w, "list history failed", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.SwitchRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.hub.Add(conn)
	s.logger.Debug("preview page connected", zap.Int("connections", s.hub.Count()))

	// Drain incoming messages until the page disconnects.
	go func() {
		defer func() {
			s.hub.Remove(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
