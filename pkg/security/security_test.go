package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func limitedRouter(l *Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Secure())
	r.POST("/code/run", l.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func run(r *gin.Engine, learner string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/code/run", nil)
	req.Header.Set("X-Learner", learner)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLimiterPerKey(t *testing.T) {
	l := NewLimiter("code run", 2, time.Minute, func(c *gin.Context) string { return c.GetHeader("X-Learner") })
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	r := limitedRouter(l)

	for i := 0; i < 2; i++ {
		if w := run(r, "42"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i, w.Code)
		}
	}
	w := run(r, "42")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "30" {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	if w := run(r, "43"); w.Code != http.StatusOK {
		t.Errorf("other learner limited: %d", w.Code)
	}
	if w := run(r, ""); w.Code != http.StatusOK {
		t.Errorf("empty key should not be limited: %d", w.Code)
	}

	now = now.Add(30 * time.Second)
	if w := run(r, "42"); w.Code != http.StatusOK {
		t.Errorf("token not refilled: %d", w.Code)
	}
}

func TestLimiterSweep(t *testing.T) {
	l := NewLimiter("api", 10, time.Minute, ByClientIP)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.allow("a")
	now = now.Add(5 * time.Minute)
	l.allow("b")
	if n := l.Sweep(3 * time.Minute); n != 1 {
		t.Fatalf("swept %d keys, want 1", n)
	}
	if _, ok := l.store["b"]; !ok {
		t.Errorf("recent key removed")
	}
}

func TestSecureDisablesCaching(t *testing.T) {
	r := limitedRouter(NewLimiter("code run", 5, time.Minute, ByClientIP))
	w := run(r, "42")
	if got := w.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
}
