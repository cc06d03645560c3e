package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// httptest.NewRecorder() captures the response without starting a real
// server, so middleware can be tested in isolation.

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	router.Any("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextKeyAPIKey))
	})
	return router
}

func TestIngestKeyAuth(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		header   string
		query    string
		wantCode int
	}{
		{"no keys configured passes through", nil, "", "", http.StatusOK},
		{"valid header", []string{"agent-1", "agent-2"}, "agent-2", "", http.StatusOK},
		{"valid query param", []string{"agent-1"}, "", "agent-1", http.StatusOK},
		{"missing key", []string{"agent-1"}, "", "", http.StatusUnauthorized},
		{"invalid key", []string{"agent-1"}, "nope", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(IngestKeyAuth(tt.keys))

			url := "/test"
			if tt.query != "" {
				url += "?api_key=" + tt.query
			}
			req := httptest.NewRequest(http.MethodPost, url, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}

func TestIngestKeyAuth_StoresKey(t *testing.T) {
	router := newTestRouter(IngestKeyAuth([]string{"agent-1"}))

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	req.Header.Set("X-API-Key", "agent-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Body.String() != "agent-1" {
		t.Errorf("expected key in context, got %q", w.Body.String())
	}
}

func TestAdminKeyAuth(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		header   string
		wantCode int
	}{
		{"no keys configured passes through", nil, "", http.StatusOK},
		{"valid", []string{"admin-key"}, "admin-key", http.StatusOK},
		{"missing", []string{"admin-key"}, "", http.StatusUnauthorized},
		{"invalid", []string{"admin-key"}, "not-admin", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(AdminKeyAuth(tt.keys))

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}
