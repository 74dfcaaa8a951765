package kit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPRateLimiter_SlidingWindow(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"), "limits are per ip")

	now = now.Add(61 * time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestIPRateLimiter_DropsIdleClients(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(5, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow("10.0.0.1")
	now = now.Add(2 * time.Minute)
	l.Allow("10.0.0.2")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.hits, "10.0.0.1")
	assert.Contains(t, l.hits, "10.0.0.2")
}

func TestIPRateLimiter_SweepsAtMostOncePerWindow(t *testing.T) {
	t0 := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	now := t0
	l := NewIPRateLimiter(5, time.Minute)
	l.now = func() time.Time { return now }

	known := func(ip string) bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		_, ok := l.hits[ip]
		return ok
	}

	l.Allow("10.0.0.1")
	now = t0.Add(59 * time.Second)
	l.Allow("10.0.0.2")

	now = t0.Add(90 * time.Second)
	l.Allow("10.0.0.3")
	assert.False(t, known("10.0.0.1"))
	assert.True(t, known("10.0.0.2"))

	// 10.0.0.2 is idle now, but the last sweep was 30s ago
	now = t0.Add(120 * time.Second)
	l.Allow("10.0.0.3")
	assert.True(t, known("10.0.0.2"))

	now = t0.Add(150 * time.Second)
	l.Allow("10.0.0.3")
	assert.False(t, known("10.0.0.2"))
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	l := NewIPRateLimiter(1, 30*time.Second)
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	send := func(xff string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/pokemon/random", nil)
		req.RemoteAddr = "192.0.2.10:51000"
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusNoContent, send("").Code)

	rec := send("")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "too many requests")

	assert.Equal(t, http.StatusNoContent, send("198.51.100.7, 192.0.2.10").Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:51000"
	assert.Equal(t, "192.0.2.10", clientIP(req))

	req.Header.Set("X-Forwarded-For", " 198.51.100.7 , 10.0.0.1")
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.Header.Del("X-Forwarded-For")
	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientIP(req))
}
