package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rvkernel/rvkernel-mcp/internal/poller"
	"github.com/rvkernel/rvkernel-mcp/internal/state"
)

// ---------------------------------------------------------------------------
// Mock screen
// ---------------------------------------------------------------------------

type mockScreen struct {
	snapshot   any
	refreshErr error
	refreshes  int
	running    bool
}

var _ Screen = (*mockScreen)(nil)

func (m *mockScreen) Snapshot() any { return m.snapshot }
func (m *mockScreen) Running() bool { return m.running }
func (m *mockScreen) Refresh(ctx context.Context) error {
	m.refreshes++
	return m.refreshErr
}

func do(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func Test_Router_Cases(t *testing.T) {
	const token = "secret"

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
		wantBody   string
	}{
		{"health without token", http.MethodGet, "/healthz", "", http.StatusOK, `"soc":true`},
		{"list screens", http.MethodGet, "/api/v1/state", token, http.StatusOK, `{"screens":["battery","soc"]}`},
		{"list screens needs token", http.MethodGet, "/api/v1/state", "", http.StatusUnauthorized, "unauthorized"},
		{"get screen", http.MethodGet, "/api/v1/state/soc", token, http.StatusOK, `"governor":"walt"`},
		{"unknown screen", http.MethodGet, "/api/v1/state/camera", token, http.StatusNotFound, "unknown screen camera"},
		{"refresh screen", http.MethodPost, "/api/v1/state/soc/refresh", token, http.StatusOK, `"governor":"walt"`},
		{"refresh error", http.MethodPost, "/api/v1/state/battery/refresh", token, http.StatusBadGateway, "shell closed"},
		{"get is not post", http.MethodPost, "/api/v1/state/soc", token, http.StatusMethodNotAllowed, ""},
		{"mcp requires token", http.MethodPost, "/mcp", "", http.StatusUnauthorized, "unauthorized"},
		{"mcp with token", http.MethodPost, "/mcp", token, http.StatusTeapot, "mcp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			screens := map[string]Screen{
				"soc":     &mockScreen{snapshot: map[string]string{"governor": "walt"}, running: true},
				"battery": &mockScreen{refreshErr: errors.New("shell closed")},
			}
			mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTeapot)
				_, _ = w.Write([]byte("mcp"))
			})
			r := NewRouter(Options{MCP: mcp, Screens: screens, AuthToken: token})

			rr := do(t, r, tt.method, tt.path, tt.token)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if tt.wantBody != "" && !strings.Contains(rr.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func Test_Router_RefreshCallsScreen(t *testing.T) {
	s := &mockScreen{snapshot: 1}
	r := NewRouter(Options{Screens: map[string]Screen{"kernel": s}})

	do(t, r, http.MethodPost, "/api/v1/state/kernel/refresh", "")
	do(t, r, http.MethodGet, "/api/v1/state/kernel", "")
	if s.refreshes != 1 {
		t.Errorf("refreshes = %d, want 1", s.refreshes)
	}
}

func Test_Router_NoMCPHandler(t *testing.T) {
	r := NewRouter(Options{})
	if rr := do(t, r, http.MethodPost, "/mcp", ""); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// MonitorScreen
// ---------------------------------------------------------------------------

type gauge struct {
	Level int `json:"level"`
}

func Test_MonitorScreen_ServesStoreSnapshot(t *testing.T) {
	store := state.NewStore(gauge{})
	level := 0
	load := func(ctx context.Context) (gauge, error) {
		level += 10
		return gauge{Level: level}, nil
	}
	mon := state.NewMonitor("battery", store, load, poller.Fixed(poller.MinInterval))
	r := NewRouter(Options{Screens: map[string]Screen{"battery": MonitorScreen(mon)}})

	rr := do(t, r, http.MethodPost, "/api/v1/state/battery/refresh", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}

	var snap state.Snapshot[gauge]
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Value.Level != 10 || snap.Version != 1 {
		t.Errorf("snapshot = %+v, want level 10 at version 1", snap)
	}

	rr = do(t, r, http.MethodGet, "/healthz", "")
	if !strings.Contains(rr.Body.String(), `"battery":false`) {
		t.Errorf("health = %q, want stopped battery monitor", rr.Body.String())
	}
}
