package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	rl := NewRateLimiter(limit, window)
	rl.now = clock.Now
	return rl, clock
}

func TestRateLimiter_Allow(t *testing.T) {
	limiter, _ := newTestLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("192.168.1.1"), "request %d", i+1)
	}
	assert.False(t, limiter.Allow("192.168.1.1"))
	assert.True(t, limiter.Allow("192.168.1.2"))
}

func TestRateLimiter_WindowExpiration(t *testing.T) {
	limiter, clock := newTestLimiter(2, 500*time.Millisecond)

	limiter.Allow("192.168.1.1")
	limiter.Allow("192.168.1.1")
	assert.False(t, limiter.Allow("192.168.1.1"))

	clock.Advance(600 * time.Millisecond)
	assert.True(t, limiter.Allow("192.168.1.1"))
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter, clock := newTestLimiter(5, 100*time.Millisecond)

	limiter.Allow("192.168.1.1")
	limiter.Allow("192.168.1.2")
	limiter.Allow("192.168.1.3")
	assert.Len(t, limiter.requests, 3)

	clock.Advance(150 * time.Millisecond)
	limiter.cleanup()
	assert.Empty(t, limiter.requests)
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	limiter, _ := newTestLimiter(10, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				limiter.Allow("192.168.1.1")
			}
		}()
	}
	wg.Wait()

	assert.False(t, limiter.Allow("192.168.1.1"))
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)
	h := RateLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i, want := range []int{http.StatusNoContent, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/login", nil)
		req.RemoteAddr = "10.0.0.1:5000" + string(rune('0'+i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code)
	}
}
