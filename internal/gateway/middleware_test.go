package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP_PrefersXRealIPThenForwardedThenRemoteAddr(t *testing.T) {
	r1 := httptest.NewRequest(http.MethodGet, "/", nil)
	r1.Header.Set("X-Real-IP", "1.2.3.4")
	r1.Header.Set("X-Forwarded-For", "5.6.7.8")
	assert.Equal(t, "1.2.3.4", clientIP(r1))

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.Header.Set("X-Forwarded-For", "5.6.7.8")
	assert.Equal(t, "5.6.7.8", clientIP(r2))

	r3 := httptest.NewRequest(http.MethodGet, "/", nil)
	r3.RemoteAddr = "9.9.9.9:5555"
	assert.Equal(t, "9.9.9.9", clientIP(r3))
}

func TestRateLimitMiddleware_BlocksAfterThreshold(t *testing.T) {
	handler := rateLimitMiddleware(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ip := "203.0.113.7:1"
	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusOK, do())
	assert.Equal(t, http.StatusTooManyRequests, do())
}

func TestFlakyMiddleware_NeverInjectsAtZero(t *testing.T) {
	handler := flakyMiddleware(0)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/generate_battle", nil)
		w := httptest.NewRecorder()
		handler(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestFlakyMiddleware_AlwaysInjectsAtOne(t *testing.T) {
	called := false
	handler := flakyMiddleware(1)(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodPost, "/generate_battle", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, called)
}
