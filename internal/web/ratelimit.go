package web

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/bookshelf/internal/core"
)

var errRateLimited = errors.New("rate limit exceeded")

// rateLimiter is a fixed-window request counter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a limiter allowing rate requests per window. Stale
// visitors are swept until stop is closed; a nil stop disables the sweep.
func newRateLimiter(rate int, window time.Duration, stop <-chan struct{}) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
	if stop != nil {
		go rl.cleanup(stop)
	}
	return rl
}

func (rl *rateLimiter) cleanup(stop <-chan struct{}) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if rl.now().Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rejects requests over the limit with 429 and the envelope.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			writeResponse(w, r, http.StatusTooManyRequests, core.Failure(nil, errRateLimited))
			return
		}
		next.ServeHTTP(w, r)
	})
}
