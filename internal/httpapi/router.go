// Package httpapi mounts the MCP endpoint next to plain JSON views of the
// monitored state.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/rvkernel/rvkernel-mcp/internal/auth"
	"github.com/rvkernel/rvkernel-mcp/internal/state"
)

// Screen is one monitored view exposed under /api/v1/state/{name}.
type Screen interface {
	Snapshot() any
	Refresh(ctx context.Context) error
	Running() bool
}

type monitorScreen[T any] struct {
	m *state.Monitor[T]
}

// MonitorScreen exposes a state.Monitor as a Screen.
func MonitorScreen[T any](m *state.Monitor[T]) Screen {
	return monitorScreen[T]{m: m}
}

func (s monitorScreen[T]) Snapshot() any                     { return s.m.Store().Snapshot() }
func (s monitorScreen[T]) Refresh(ctx context.Context) error { return s.m.Refresh(ctx) }
func (s monitorScreen[T]) Running() bool                     { return s.m.Running() }

// Options configures NewRouter.
type Options struct {
	// MCP serves the Streamable HTTP transport at /mcp. Optional.
	MCP http.Handler
	// Screens are keyed by URL name ("system", "soc", ...).
	Screens map[string]Screen
	// AuthToken guards every route except /healthz. Empty disables auth.
	AuthToken string
}

// NewRouter builds the HTTP routes:
//
//	GET  /healthz                         liveness and monitor status
//	GET  /api/v1/state                    screen names
//	GET  /api/v1/state/{screen}           latest snapshot
//	POST /api/v1/state/{screen}/refresh   reload now, then return the snapshot
//	*    /mcp                             MCP Streamable HTTP
func NewRouter(opts Options) *mux.Router {
	h := &handlers{screens: opts.Screens}

	r := mux.NewRouter()
	r.Use(auth.NewAuthMiddleware(opts.AuthToken, "/healthz"))

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/state", h.listScreens).Methods(http.MethodGet)
	api.HandleFunc("/state/{screen}", h.getScreen).Methods(http.MethodGet)
	api.HandleFunc("/state/{screen}/refresh", h.refreshScreen).Methods(http.MethodPost)

	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
	}
	return r
}

type handlers struct {
	screens map[string]Screen
}

type healthResponse struct {
	Status   string          `json:"status"`
	Monitors map[string]bool `json:"monitors"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Monitors: make(map[string]bool, len(h.screens))}
	for name, s := range h.screens {
		resp.Monitors[name] = s.Running()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) listScreens(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.screens))
	for name := range h.screens {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string][]string{"screens": names})
}

func (h *handlers) getScreen(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *handlers) refreshScreen(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := s.Refresh(r.Context()); err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.Snapshot())
}

func (h *handlers) lookup(w http.ResponseWriter, r *http.Request) (Screen, bool) {
	name := mux.Vars(r)["screen"]
	s, ok := h.screens[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown screen " + name})
		return nil, false
	}
	return s, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
