package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func authRouter(keys []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Auth(keys))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name       string
		keys       []string
		header     string
		value      string
		wantStatus int
	}{
		{"no keys configured is open", nil, "", "", http.StatusOK},
		{"valid X-API-Key", []string{"secret"}, "X-API-Key", "secret", http.StatusOK},
		{"valid Bearer token", []string{"secret"}, "Authorization", "Bearer secret", http.StatusOK},
		{"missing key", []string{"secret"}, "", "", http.StatusUnauthorized},
		{"wrong key", []string{"secret"}, "X-API-Key", "nope", http.StatusUnauthorized},
		{"malformed Authorization", []string{"secret"}, "Authorization", "secret", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := authRouter(tt.keys)
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
