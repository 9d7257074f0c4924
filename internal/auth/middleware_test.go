package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testToken = "f3a9c2e1b7d4"

// recorder counts the requests that reached the wrapped handler.
type recorder struct {
	hits int
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec.hits++
	w.WriteHeader(http.StatusNoContent)
}

func serve(h http.Handler, method, target, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Public paths
// ---------------------------------------------------------------------------

func Test_Middleware_PublicPath_Cases(t *testing.T) {
	tests := []struct {
		name     string
		public   []string
		target   string
		wantPass bool
	}{
		{"listed path", []string{"/healthz"}, "/healthz", true},
		{"query string ignored", []string{"/healthz"}, "/healthz?verbose=1", true},
		{"second listed path", []string{"/healthz", "/version"}, "/version", true},
		{"sub-path not exempt", []string{"/healthz"}, "/healthz/monitors", false},
		{"trailing slash not exempt", []string{"/healthz"}, "/healthz/", false},
		{"prefix not exempt", []string{"/api"}, "/api/v1/state", false},
		{"nothing public", nil, "/healthz", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			w := serve(NewAuthMiddleware(testToken, tt.public...)(rec), http.MethodGet, tt.target, "")

			if tt.wantPass {
				if w.Code != http.StatusNoContent || rec.hits != 1 {
					t.Errorf("status = %d, hits = %d, want exempt", w.Code, rec.hits)
				}
				return
			}
			if w.Code != http.StatusUnauthorized || rec.hits != 0 {
				t.Errorf("status = %d, hits = %d, want 401", w.Code, rec.hits)
			}
		})
	}
}

func Test_Middleware_EmptyTokenDisablesCheck(t *testing.T) {
	rec := &recorder{}
	h := NewAuthMiddleware("")(rec)

	for _, target := range []string{"/mcp", "/api/v1/state/soc"} {
		if w := serve(h, http.MethodGet, target, ""); w.Code != http.StatusNoContent {
			t.Errorf("%s: status = %d, want pass-through", target, w.Code)
		}
	}
	if w := serve(h, http.MethodGet, "/mcp", "Bearer anything"); w.Code != http.StatusNoContent {
		t.Errorf("status with arbitrary token = %d", w.Code)
	}
	if rec.hits != 3 {
		t.Errorf("hits = %d, want 3", rec.hits)
	}
}

// ---------------------------------------------------------------------------
// Challenge
// ---------------------------------------------------------------------------

func Test_Middleware_RejectionChallenges(t *testing.T) {
	rec := &recorder{}
	w := serve(NewAuthMiddleware(testToken)(rec), http.MethodPost, "/mcp", "Bearer wrong")

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != `Bearer realm="rvkernel"` {
		t.Errorf("WWW-Authenticate = %q", got)
	}
	if body := strings.TrimSpace(w.Body.String()); body != "unauthorized" {
		t.Errorf("body = %q, want unauthorized", body)
	}
	if rec.hits != 0 {
		t.Error("rejected request reached the handler")
	}
}

func Test_Middleware_AcceptedRequestHasNoChallenge(t *testing.T) {
	w := serve(NewAuthMiddleware(testToken)(&recorder{}), http.MethodGet, "/mcp", "Bearer "+testToken)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("WWW-Authenticate"); got != "" {
		t.Errorf("WWW-Authenticate = %q on accepted request", got)
	}
}

// ---------------------------------------------------------------------------
// Token comparison
// ---------------------------------------------------------------------------

func Test_validBearer_Cases(t *testing.T) {
	tests := []struct {
		header string
		want   bool
	}{
		{"Bearer " + testToken, true},
		{"", false},
		{"Bearer ", false},
		{"Bearer", false},
		{testToken, false},
		{"bearer " + testToken, false},
		{"Basic " + testToken, false},
		{"Bearer  " + testToken, false},
		{"Bearer " + testToken + " ", false},
		{"Bearer " + testToken[:len(testToken)-1], false},
		{"Bearer " + testToken + "0", false},
		{"Bearer " + strings.ToUpper(testToken), false},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := validBearer(tt.header, testToken); got != tt.want {
				t.Errorf("validBearer(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Served routes
// ---------------------------------------------------------------------------

func Test_Middleware_GuardsServedRoutes(t *testing.T) {
	routes := []struct {
		method string
		target string
	}{
		{http.MethodPost, "/mcp"},
		{http.MethodGet, "/api/v1/state"},
		{http.MethodGet, "/api/v1/state/battery"},
		{http.MethodPost, "/api/v1/state/kernel/refresh"},
	}

	rec := &recorder{}
	h := NewAuthMiddleware(testToken, "/healthz")(rec)

	for _, rt := range routes {
		if w := serve(h, rt.method, rt.target, ""); w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: status = %d, want 401", rt.method, rt.target, w.Code)
		}
		if w := serve(h, rt.method, rt.target, "Bearer "+testToken); w.Code != http.StatusNoContent {
			t.Errorf("%s %s with token: status = %d, want pass-through", rt.method, rt.target, w.Code)
		}
	}
	if rec.hits != len(routes) {
		t.Errorf("hits = %d, want %d", rec.hits, len(routes))
	}
}
