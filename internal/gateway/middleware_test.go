package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
})

func TestLoggingMiddleware(t *testing.T) {
	handler := loggingMiddleware(testLog())(okHandler)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	rr := httptest.NewRecorder()
	requestIDMiddleware(okHandler).ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))

	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestRequestIDMiddleware_PreservesExisting(t *testing.T) {
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "custom-id-123")
	rr := httptest.NewRecorder()
	requestIDMiddleware(okHandler).ServeHTTP(rr, req)

	assert.Equal(t, "custom-id-123", rr.Header().Get("X-Request-ID"))
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"deny when unconfigured", nil, "http://localhost:3000", ""},
		{"wildcard", []string{"*"}, "http://localhost:3000", "http://localhost:3000"},
		{"listed origin", []string{"http://allowed.com"}, "http://allowed.com", "http://allowed.com"},
		{"unlisted origin", []string{"http://allowed.com"}, "http://evil.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			corsMiddleware(tt.allowed)(okHandler).ServeHTTP(rr, req)

			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	req := httptest.NewRequest("OPTIONS", "/test", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	corsMiddleware(nil)(okHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestCheckWebSocketOrigin(t *testing.T) {
	check := checkWebSocketOrigin([]string{"http://app.example.com"})

	req := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, check(req), "non-browser clients send no Origin")

	req.Header.Set("Origin", "http://app.example.com")
	assert.True(t, check(req))

	req.Header.Set("Origin", "http://evil.com")
	assert.False(t, check(req))
}
