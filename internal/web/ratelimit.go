package web

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/JonMunkholm/csvstore/internal/core"
	"golang.org/x/time/rate"
)

var errRateLimited = errors.New("rate limit exceeded")

// rateLimiter keeps a token bucket per client IP that holds requests per
// window and refills at the same rate. A background sweeper drops idle
// visitors until stop is called.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	requests int
	window   time.Duration
	now      func() time.Time
	done     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter(requests int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		requests: requests,
		window:   window,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

func (rl *rateLimiter) sweep() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

func (rl *rateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// allow consumes a token for ip and reports whether the request may proceed.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, ok := rl.visitors[ip]
	if !ok {
		every := rate.Every(rl.window / time.Duration(rl.requests))
		v = &visitor{limiter: rate.NewLimiter(every, rl.requests)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// middleware rejects requests over the limit with 429. The client key is the
// connection address, already rewritten by TrustedRealIP for proxied requests.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if !rl.allow(ip) {
			msg := core.MapError(errRateLimited)
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window/time.Second)))
			writeJSON(w, http.StatusTooManyRequests, ErrorResponse{Error: msg.Message, Code: msg.Code})
			return
		}

		next.ServeHTTP(w, r)
	})
}
