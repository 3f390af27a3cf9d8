package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"student-records/internal/logger"

	"github.com/stretchr/testify/assert"
)

func TestAllowedOrigin(t *testing.T) {
	allowed := []string{"http://localhost", "http://localhost:3000/"}

	assert.True(t, AllowedOrigin(allowed, "http://localhost"))
	assert.True(t, AllowedOrigin(allowed, "http://localhost/"))
	assert.True(t, AllowedOrigin(allowed, "http://localhost:3000"))
	assert.False(t, AllowedOrigin(allowed, "http://localhost:3001"))
	assert.False(t, AllowedOrigin(allowed, "https://evil.example.com"))
	assert.True(t, AllowedOrigin([]string{"*"}, "https://anything.example.com"))
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"http://localhost:3000"}, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("AllowedOrigin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("BlockedOrigin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("NoOrigin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/students/1", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Less(t, w.Code, 300)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)
	})
}
